package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector 指标收集器
type MetricsCollector struct {
	registry *prometheus.Registry

	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 缓存指标
	cacheHitsTotal   *prometheus.CounterVec
	cacheMissesTotal *prometheus.CounterVec

	// 业务指标
	postViewsTotal       prometheus.Counter
	togglesTotal         *prometheus.CounterVec
	imageNormalizeTotal  *prometheus.CounterVec
	newsletterTotal      *prometheus.CounterVec
	notificationsTotal   *prometheus.CounterVec
	notificationQueueLen prometheus.Gauge
}

// NewMetricsCollector 创建指标收集器，每个收集器持有独立的 registry
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &MetricsCollector{
		registry: reg,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		httpResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "endpoint"},
		),

		cacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"key_prefix"},
		),

		cacheMissesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"key_prefix"},
		),

		postViewsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "blog_post_views_total",
				Help: "Number of counted post views (one per session per post)",
			},
		),

		togglesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blog_toggles_total",
				Help: "Like, bookmark and follow toggles by resulting state",
			},
			[]string{"kind", "state"},
		),

		imageNormalizeTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blog_image_normalize_total",
				Help: "Image normalisation outcomes",
			},
			[]string{"result"},
		),

		newsletterTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blog_newsletter_events_total",
				Help: "Newsletter subscribe and unsubscribe outcomes",
			},
			[]string{"event"},
		),

		notificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blog_follower_notifications_total",
				Help: "Follower notification jobs by result",
			},
			[]string{"result"},
		),

		notificationQueueLen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "blog_notification_queue_length",
				Help: "Pending follower notification jobs",
			},
		),
	}
}

// Registry 供 /metrics 暴露
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint string, status int, duration time.Duration, responseSize int) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, getStatusCategory(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	if responseSize > 0 {
		m.httpResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
	}
}

// RecordCache 记录缓存命中情况
func (m *MetricsCollector) RecordCache(keyPrefix string, hit bool) {
	if hit {
		m.cacheHitsTotal.WithLabelValues(keyPrefix).Inc()
		return
	}
	m.cacheMissesTotal.WithLabelValues(keyPrefix).Inc()
}

// RecordPostView 记录一次计入的浏览
func (m *MetricsCollector) RecordPostView() {
	m.postViewsTotal.Inc()
}

// RecordToggle kind: like/bookmark/follow
func (m *MetricsCollector) RecordToggle(kind string, on bool) {
	m.togglesTotal.WithLabelValues(kind, strconv.FormatBool(on)).Inc()
}

// RecordImageNormalize result: normalized/unchanged/skipped/error
func (m *MetricsCollector) RecordImageNormalize(result string) {
	m.imageNormalizeTotal.WithLabelValues(result).Inc()
}

// RecordNewsletter event: subscribed/reactivated/already/unsubscribed
func (m *MetricsCollector) RecordNewsletter(event string) {
	m.newsletterTotal.WithLabelValues(event).Inc()
}

// RecordNotification result: sent/retry/dead
func (m *MetricsCollector) RecordNotification(result string) {
	m.notificationsTotal.WithLabelValues(result).Inc()
}

// SetNotificationQueueLength 更新通知队列长度
func (m *MetricsCollector) SetNotificationQueueLength(n int) {
	m.notificationQueueLen.Set(float64(n))
}

// getStatusCategory 获取状态分类
func getStatusCategory(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

var (
	globalCollector *MetricsCollector
	once            sync.Once
)

// GetGlobalCollector 获取全局指标收集器
func GetGlobalCollector() *MetricsCollector {
	once.Do(func() {
		globalCollector = NewMetricsCollector()
	})
	return globalCollector
}
