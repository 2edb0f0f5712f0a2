package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"dams/internal/model"
)

// DefaultPageSize is the fixed page size used by every list screen.
const DefaultPageSize = 10

// DoctorQuery filters the doctor directory. Empty strings are omitted.
type DoctorQuery struct {
	Page           int
	Limit          int
	Search         string
	Specialization string
}

func (q DoctorQuery) normalize() DoctorQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	return q
}

func (q DoctorQuery) values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("limit", strconv.Itoa(q.Limit))
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Specialization != "" {
		v.Set("specialization", q.Specialization)
	}
	return v
}

// DoctorResource wraps /doctors and /specializations.
type DoctorResource struct {
	c *Client
}

type doctorsResponse struct {
	envelope
	Data  []model.Doctor `json:"data"`
	Total *int           `json:"total"`
}

type specializationsResponse struct {
	envelope
	Data []string `json:"data"`
}

// ListDoctors returns one page of the doctor directory.
func (r *DoctorResource) ListDoctors(ctx context.Context, q DoctorQuery) (model.Page[model.Doctor], error) {
	q = q.normalize()
	raw, err := r.c.query(ctx, TagDoctor, call{
		resource: "doctor",
		method:   http.MethodGet,
		path:     "/doctors",
		query:    q.values(),
	})
	if err != nil {
		return model.Page[model.Doctor]{}, err
	}
	out, err := decode[doctorsResponse]("doctor", raw)
	if err != nil {
		return model.Page[model.Doctor]{}, err
	}
	return newPage(out.Data, q.Page, q.Limit, out.Total), nil
}

// ListSpecializations returns the specialization names for the filter drop-down.
func (r *DoctorResource) ListSpecializations(ctx context.Context) ([]string, error) {
	raw, err := r.c.query(ctx, TagSpecialization, call{
		resource: "doctor",
		method:   http.MethodGet,
		path:     "/specializations",
	})
	if err != nil {
		return nil, err
	}
	out, err := decode[specializationsResponse]("doctor", raw)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

func newPage[T any](items []T, page, limit int, total *int) model.Page[T] {
	p := model.Page[T]{Items: items, Page: page, Limit: limit}
	if total != nil {
		p.Total = *total
		p.HasTotal = true
	}
	return p
}
