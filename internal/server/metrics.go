package server

import (
	"bufio"
	"coinmarket/internal/model"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const metricsNamespace = "coinmarket"

// Metrics holds the Prometheus collectors of one server. It also records the marketplace events.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	priceSets     prometheus.Counter
	currentPrice  prometheus.Gauge
	coinsSold     prometheus.Counter
	balancePaid   prometheus.Counter
	coinsGranted  *prometheus.CounterVec
	purchases     *prometheus.CounterVec
	purchaseValue prometheus.Counter
	feeds         *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "path"}),
		priceSets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "coin",
			Name:      "price_sets_total",
			Help:      "Number of times the coin price was set.",
		}),
		currentPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "coin",
			Name:      "current_price",
			Help:      "Last coin price set through this server.",
		}),
		coinsSold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "coin",
			Name:      "sold_total",
			Help:      "Coins sold by members.",
		}),
		balancePaid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "coin",
			Name:      "sale_earnings_total",
			Help:      "Balance paid out for sold coins.",
		}),
		coinsGranted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "coin",
			Name:      "grants_total",
			Help:      "Coin grants and revocations by direction, counted per member.",
		}, []string{"direction"}),
		purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "purchase",
			Name:      "requests_total",
			Help:      "Purchase requests by outcome.",
		}, []string{"outcome"}),
		purchaseValue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "purchase",
			Name:      "submitted_value_total",
			Help:      "Total price of submitted purchase requests.",
		}),
		feeds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Open websocket feed subscriptions by topic.",
		}, []string{"topic"}),
	}
	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.priceSets,
		m.currentPrice,
		m.coinsSold,
		m.balancePaid,
		m.coinsGranted,
		m.purchases,
		m.purchaseValue,
		m.feeds,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) PriceSet(price int64) {
	m.priceSets.Inc()
	m.currentPrice.Set(float64(price))
}

func (m *Metrics) CoinsSold(amount int64, earned int64) {
	m.coinsSold.Add(float64(amount))
	m.balancePaid.Add(float64(earned))
}

func (m *Metrics) CoinsGranted(delta int64, members int) {
	direction := "grant"
	if delta < 0 {
		direction = "revoke"
	}
	m.coinsGranted.WithLabelValues(direction).Add(float64(members))
}

func (m *Metrics) PurchaseSubmitted(totalPrice int64) {
	m.purchases.WithLabelValues(string(model.StatusPending)).Inc()
	m.purchaseValue.Add(float64(totalPrice))
}

func (m *Metrics) PurchaseSettled(status model.PurchaseStatus) {
	m.purchases.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) feedOpened(topic string) { m.feeds.WithLabelValues(topic).Inc() }
func (m *Metrics) feedClosed(topic string) { m.feeds.WithLabelValues(topic).Dec() }

// instrumentMw records count and duration of every request, labelled with the route template.
func (m *Metrics) instrumentMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := "unmatched"
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		method := strings.ToUpper(r.Method)
		m.httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
