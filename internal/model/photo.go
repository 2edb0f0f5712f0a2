package model

import (
	"net/url"
	"strings"
)

// DefaultDoctorPhoto is shown when a doctor has no usable photo.
const DefaultDoctorPhoto = "/default-doctor.png"

// DefaultPhotoHosts returns the hosts whose photos are shown as-is. Uploads
// land on res.cloudinary.com.
func DefaultPhotoHosts() []string {
	return []string{"appointment-manager-node.onrender.com", "randomuser.me", "res.cloudinary.com"}
}

// SafePhotoURL returns raw when it is an absolute URL whose host is on the
// allow-list (exact match or subdomain), otherwise fallback.
func SafePhotoURL(raw string, allowedHosts []string, fallback string) string {
	if raw == "" {
		return fallback
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fallback
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range allowedHosts {
		allowed = strings.ToLower(allowed)
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return raw
		}
	}
	return fallback
}
