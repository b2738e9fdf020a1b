package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec
	// DB
	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	// metering
	ChargesTotal     *prometheus.CounterVec
	PointsCredited   prometheus.Counter
	UpstreamDuration *prometheus.HistogramVec
	BreakerOpen      prometheus.Gauge
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "idprint",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "idprint",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distributions.",
				// uploads wait on the extractor, hence the long tail
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method", "route", "status"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "idprint",
				Name:      "http_in_flight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
			[]string{"method", "route"},
		),
		DbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "idprint",
				Subsystem: "db",
				Name:      "query_duration_seconds",
				Help:      "DB operation latency (logical op, not raw SQL)",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
			},
			[]string{"op", "status"},
		),
		DbErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "idprint",
				Subsystem: "db",
				Name:      "errors_total",
				Help:      "DB errors by logical op and class.",
			},
			[]string{"op", "class"},
		),
		ChargesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "idprint",
				Subsystem: "points",
				Name:      "charges_total",
				Help:      "Charge attempts by operation and result.",
			},
			[]string{"operation", "result"}, // result=settled|abandoned|rejected
		),
		PointsCredited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "idprint",
				Subsystem: "points",
				Name:      "credited_total",
				Help:      "Points added by admin top-ups.",
			},
		),
		UpstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "idprint",
				Subsystem: "extractor",
				Name:      "request_duration_seconds",
				Help:      "Extractor round-trip latency by operation and outcome.",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"operation", "outcome"},
		),
		BreakerOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "idprint",
				Subsystem: "extractor",
				Name:      "breaker_open",
				Help:      "1 while the extractor circuit breaker rejects calls.",
			},
		),
	}
	reg.MustRegister(
		p.RequestsTotal, p.RequestsDuration, p.InFlight,
		p.DbQueryDuration, p.DbErrorsTotal,
		p.ChargesTotal, p.PointsCredited, p.UpstreamDuration, p.BreakerOpen,
	)

	return p
}

func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		// route template is only available after routing; best effort:
		route := ctx.FullPath()

		if route == "" {
			route = "unmatched"
		}

		method := ctx.Request.Method
		p.InFlight.WithLabelValues(method, route).Inc()
		defer p.InFlight.WithLabelValues(method, route).Dec()
		ctx.Next()

		status := strconv.Itoa(ctx.Writer.Status())
		secs := time.Since(start).Seconds()

		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(secs)
	}
}

// The helpers below are nil-safe so callers can run without metrics (tests).

func (p *Prom) ObserveCharge(operation, result string) {
	if p == nil {
		return
	}
	p.ChargesTotal.WithLabelValues(operation, result).Inc()
}

func (p *Prom) ObserveCredit(amount int) {
	if p == nil {
		return
	}
	p.PointsCredited.Add(float64(amount))
}

func (p *Prom) ObserveUpstream(operation, outcome string, d time.Duration) {
	if p == nil {
		return
	}
	p.UpstreamDuration.WithLabelValues(operation, outcome).Observe(d.Seconds())
}

func (p *Prom) SetBreakerOpen(open bool) {
	if p == nil {
		return
	}
	if open {
		p.BreakerOpen.Set(1)
		return
	}
	p.BreakerOpen.Set(0)
}
