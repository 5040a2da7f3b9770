// Package server exposes the estimator through an HTML form and a JSON API.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"car-price-estimator/inference"
	"car-price-estimator/models"
	"car-price-estimator/utils"
)

// Estimator is the part of inference.Estimator the handlers need.
type Estimator interface {
	Estimate(in models.Listing) (float64, error)
}

// EstimateRequest is one car description as submitted by the form or the
// API. Ranges match the form controls.
type EstimateRequest struct {
	Make              string  `form:"make" json:"make" binding:"required"`
	Model             string  `form:"model" json:"model" binding:"required"`
	Year              int     `form:"year" json:"year" binding:"required,min=1960,max=2025"`
	Fuel              string  `form:"fuel" json:"fuel" binding:"required,oneof=Gasolina Diésel Otros Eléctrico"`
	Shift             string  `form:"shift" json:"shift" binding:"required,oneof=Manual Automatic"`
	Power             float64 `form:"power" json:"power" binding:"required,min=45,max=500"`
	CylindersCapacity float64 `form:"cylinders_capacity" json:"cylinders_capacity" binding:"min=0,max=6.8"`
	EmissionLabel     string  `form:"emission_label" json:"emission_label" binding:"required,oneof=A B C ZERO"`
	Kms               float64 `form:"kms" json:"kms" binding:"min=0,max=2000000"`
	DealerZipCode     int     `form:"dealer_zip_code" json:"dealer_zip_code" binding:"min=0,max=60000"`
}

// Listing converts the request into the estimator input.
func (r EstimateRequest) Listing() models.Listing {
	return models.Listing{
		Make:              r.Make,
		Model:             r.Model,
		Year:              r.Year,
		Fuel:              r.Fuel,
		Shift:             r.Shift,
		Power:             r.Power,
		CylindersCapacity: r.CylindersCapacity,
		EmissionLabel:     r.EmissionLabel,
		Kms:               r.Kms,
		DealerZipCode:     r.DealerZipCode,
	}
}

// EstimateResponse is the JSON answer of the estimate endpoint.
type EstimateResponse struct {
	Price     float64 `json:"price"`
	Formatted string  `json:"formatted"`
}

type metrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	estimates prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "code"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of response latency (seconds) for HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"handler", "method"},
		),
		estimates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "car_price_estimate_euros",
			Help:    "Distribution of estimated prices",
			Buckets: prometheus.ExponentialBuckets(1000, 2, 8),
		}),
	}
	reg.MustRegister(m.requests, m.latency, m.estimates,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Server serves the estimate form and API.
type Server struct {
	router    *gin.Engine
	estimator Estimator
	logger    *utils.Logger
	registry  *prometheus.Registry
	metrics   *metrics
}

// New builds the router. Each Server owns its metrics registry.
func New(est Estimator, logger *utils.Logger) *Server {
	s := &Server{
		router:    gin.New(),
		estimator: est,
		logger:    logger,
		registry:  prometheus.NewRegistry(),
	}
	s.metrics = newMetrics(s.registry)

	s.router.Use(gin.Recovery(), s.observe())
	s.registerRoutes()
	return s
}

// Router returns the gin engine for tests and embedding.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/", s.showForm)
	s.router.POST("/predict", s.predictForm)
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := s.router.Group("/api/v1")
	api.POST("/estimate", s.estimateJSON)
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("[server] Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("[server] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// observe records request count and latency per route.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		handler := c.FullPath()
		if handler == "" {
			handler = "unmatched"
		}
		elapsed := time.Since(start)
		code := strconv.Itoa(c.Writer.Status())
		s.metrics.requests.WithLabelValues(handler, c.Request.Method, code).Inc()
		s.metrics.latency.WithLabelValues(handler, c.Request.Method).Observe(elapsed.Seconds())
		s.logger.Debug("[server] %s %s %s %v", c.Request.Method, c.Request.URL.Path, code, elapsed)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) showForm(c *gin.Context) {
	render(c, http.StatusOK, formPage(defaultRequest(), ""))
}

func (s *Server) predictForm(c *gin.Context) {
	var req EstimateRequest
	if err := c.ShouldBind(&req); err != nil {
		render(c, http.StatusBadRequest, formPage(req, err.Error()))
		return
	}

	price, err := s.estimate(req)
	if err != nil {
		render(c, http.StatusInternalServerError, formPage(req, "No se pudo estimar el precio"))
		return
	}
	render(c, http.StatusOK, resultPage(req, inference.FormatPrice(price)))
}

func (s *Server) estimateJSON(c *gin.Context) {
	var req EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	price, err := s.estimate(req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "estimation failed"})
		return
	}
	c.JSON(http.StatusOK, EstimateResponse{Price: price, Formatted: inference.FormatPrice(price)})
}

func (s *Server) estimate(req EstimateRequest) (float64, error) {
	price, err := s.estimator.Estimate(req.Listing())
	if err != nil {
		s.logger.Error("[server] Estimate failed for %s %s: %v", req.Make, req.Model, err)
		return 0, err
	}
	s.metrics.estimates.Observe(price)
	return price, nil
}
