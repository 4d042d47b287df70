package prometheus

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultPath = "/metrics"
	defaultAddr = "localhost:9180"

	namespace = "nextlease"
)

// UsageFunc returns the number of allocated addresses and the size of
// the address pool
type UsageFunc func(ctx context.Context) (allocated int, size int, err error)

// Metrics represents prometheus metrics
type Metrics struct {
	addr           string // where to we listen
	path           string
	extraLabels    []extraLabel
	latencyBuckets []float64

	registry        *prometheus.Registry
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	eventCount      *prometheus.CounterVec

	l   sync.Mutex
	srv *http.Server
	ln  net.Listener
	log log.Interface
}

type extraLabel struct {
	name  string
	value string
}

// NewMetrics create a new Metrics
func NewMetrics(path, addr string) *Metrics {
	p := path
	if path == "" {
		p = defaultPath
	}
	a := addr
	if addr == "" {
		a = defaultAddr
	}
	return &Metrics{
		path:        p,
		addr:        a,
		extraLabels: []extraLabel{},
		log:         log.Log,
	}
}

func (m *Metrics) constLabels() prometheus.Labels {
	labels := prometheus.Labels{}

	for _, label := range m.extraLabels {
		labels[label.name] = label.value
	}

	return labels
}

// define creates all collectors on a registry owned by m. usage is
// queried each time the metrics are scraped
func (m *Metrics) define(usage UsageFunc) {
	if m.latencyBuckets == nil {
		m.latencyBuckets = prometheus.DefBuckets
	}

	labels := m.constLabels()
	m.registry = prometheus.NewRegistry()

	m.requestCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "request_count_total",
		Help:        "Counter of lease requests by command and response status.",
		ConstLabels: labels,
	}, []string{"command", "status"})

	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Name:        "request_duration_seconds",
		Help:        "Histogram of the time (in seconds) each request took.",
		Buckets:     m.latencyBuckets,
		ConstLabels: labels,
	}, []string{"command"})

	m.eventCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "event_count_total",
		Help:        "Counter of lease events.",
		ConstLabels: labels,
	}, []string{"event"})

	m.registry.MustRegister(
		m.requestCount,
		m.requestDuration,
		m.eventCount,
		collectors.NewGoCollector(),
	)

	if usage == nil {
		return
	}

	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "addresses_allocated",
			Help:        "Number of addresses currently leased.",
			ConstLabels: labels,
		}, func() float64 {
			allocated, _ := m.usage(usage)
			return float64(allocated)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "pool_size",
			Help:        "Number of addresses in the pool.",
			ConstLabels: labels,
		}, func() float64 {
			_, size := m.usage(usage)
			return float64(size)
		}),
	)
}

func (m *Metrics) usage(fn UsageFunc) (int, int) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	allocated, size, err := fn(ctx)
	if err != nil {
		m.log.Warnf("failed to get pool usage: %s", err)
		return 0, 0
	}

	return allocated, size
}

// start serves the metrics on the configured address
func (m *Metrics) start() error {
	m.l.Lock()
	defer m.l.Unlock()

	ln, err := net.Listen("tcp", m.addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle(m.path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog: &errorLogger{m.log},
	}))

	m.ln = ln
	m.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Errorf("failed to serve metrics: %v", err)
		}
	}(m.srv)

	m.log.Infof("serving metrics on http://%s%s", ln.Addr(), m.path)

	return nil
}

// stop shuts down the metrics listener
func (m *Metrics) stop() error {
	m.l.Lock()
	defer m.l.Unlock()

	if m.srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := m.srv.Shutdown(ctx)
	m.srv = nil
	m.ln = nil

	return err
}

// listenAddr returns the address metrics are served on or nil
func (m *Metrics) listenAddr() net.Addr {
	m.l.Lock()
	defer m.l.Unlock()

	if m.ln == nil {
		return nil
	}
	return m.ln.Addr()
}

type errorLogger struct {
	l log.Interface
}

func (e *errorLogger) Println(v ...interface{}) {
	e.l.Errorf("%v", v)
}
