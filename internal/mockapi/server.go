package mockapi

import (
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dams/internal/auth"
	"dams/internal/forms"
	"dams/internal/httpmiddleware"
	"dams/internal/model"
)

// Config wires a Server.
type Config struct {
	Options
	RateLimitPerMin int
	// Registry collects the server metrics and backs /metrics. Nil means a fresh registry.
	Registry *prometheus.Registry
	// AccessLog enables gin's request logger.
	AccessLog bool
}

// Server is an in-memory stand-in for the hosted appointment API.
type Server struct {
	repo    *Repository
	svc     *Service
	router  *gin.Engine
	cfg     Config
	metrics *serverMetrics
}

var bindingOnce sync.Once

// registerBinding teaches gin's validator the form tags and json field names.
func registerBinding() {
	bindingOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			if err := forms.Register(v); err != nil {
				log.Fatalf("register binding validations: %v", err)
			}
		}
	})
}

// New builds the router. Call Service().Seed to load demo data.
func New(cfg Config) *Server {
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.RateLimitPerMin <= 0 {
		cfg.RateLimitPerMin = 120
	}
	registerBinding()
	repo := NewRepository()
	s := &Server{
		repo:    repo,
		svc:     NewService(repo, cfg.Options),
		cfg:     cfg,
		metrics: newServerMetrics(cfg.Registry),
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Service exposes the business layer, for seeding.
func (s *Server) Service() *Service { return s.svc }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if s.cfg.AccessLog {
		r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
			SkipPaths: []string{"/healthz", "/metrics"},
		}))
	}
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(securityHeaders())
	r.Use(s.metrics.middleware())

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.cfg.Registry, promhttp.HandlerOpts{})))
	r.GET("/healthz", func(c *gin.Context) {
		accounts, appointments := s.repo.Counts()
		c.JSON(http.StatusOK, gin.H{"status": "ok", "accounts": accounts, "appointments": appointments})
	})

	v1 := r.Group("/api/v1")

	authGroup := v1.Group("/auth", httpmiddleware.NewRateLimiter(s.cfg.RateLimitPerMin, 0).GinMiddleware())
	authGroup.POST("/login", s.login)
	authGroup.POST("/register/patient", s.register(model.RolePatient))
	authGroup.POST("/register/doctor", s.register(model.RoleDoctor))

	v1.GET("/doctors", s.listDoctors)
	v1.GET("/specializations", s.listSpecializations)

	appts := v1.Group("/appointments", auth.BearerAuth(s.cfg.SigningKey, s.cfg.Issuer))
	appts.POST("", auth.RequireRole(string(model.RolePatient)), s.createAppointment)
	appts.GET("/patient", auth.RequireRole(string(model.RolePatient)), s.patientAppointments)
	appts.GET("/doctor", auth.RequireRole(string(model.RoleDoctor)), s.doctorAppointments)
	appts.PATCH("/update-status", s.updateStatus)

	return r
}

// securityHeaders sets the usual browser hardening headers.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

type serverMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	m := &serverMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dams_mockapi_requests_total",
			Help: "Requests served by the mock appointment API.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dams_mockapi_request_duration_seconds",
			Help:    "Latency of requests served by the mock appointment API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *serverMetrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func logf(format string, args ...any) {
	log.Printf("[mockapi] "+format, args...)
}
