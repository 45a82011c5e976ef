package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector 指标收集器
type MetricsCollector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 缓存指标
	cacheHitsTotal   *prometheus.CounterVec
	cacheMissesTotal *prometheus.CounterVec

	// 优惠券核心操作指标
	couponOperationsTotal   *prometheus.CounterVec
	couponOperationDuration *prometheus.HistogramVec
	couponsAffectedTotal    *prometheus.CounterVec

	// 身份校验
	tokenVerificationsTotal *prometheus.CounterVec

	dbStatsOnce sync.Once
}

// NewMetricsCollector 创建指标收集器，注册到 reg
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(reg)
	return &MetricsCollector{
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

		couponOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coupon_operations_total",
				Help: "Coupon operations by outcome",
			},
			[]string{"operation", "result"},
		),

		couponOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coupon_operation_duration_seconds",
				Help:    "Coupon operation duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"operation"},
		),

		couponsAffectedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coupons_affected_total",
				Help: "Coupons created or assigned by bulk operations",
			},
			[]string{"operation"},
		),

		tokenVerificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_verifications_total",
				Help: "Bearer token verifications by outcome",
			},
			[]string{"result"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint, status string, duration time.Duration, responseSize int) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	if responseSize > 0 {
		m.httpResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
	}
}

// RecordCacheOperation 记录缓存命中
func (m *MetricsCollector) RecordCacheOperation(keyPrefix string, hit bool) {
	if hit {
		m.cacheHitsTotal.WithLabelValues(keyPrefix).Inc()
	} else {
		m.cacheMissesTotal.WithLabelValues(keyPrefix).Inc()
	}
}

// RecordCouponOperation 记录优惠券操作，result 为错误类别或 "ok"
func (m *MetricsCollector) RecordCouponOperation(operation, result string, duration time.Duration, affected int) {
	m.couponOperationsTotal.WithLabelValues(operation, result).Inc()
	m.couponOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if affected > 0 {
		m.couponsAffectedTotal.WithLabelValues(operation).Add(float64(affected))
	}
}

// RecordTokenVerification 记录令牌校验结果
func (m *MetricsCollector) RecordTokenVerification(result string) {
	m.tokenVerificationsTotal.WithLabelValues(result).Inc()
}

// RegisterDBStats 注册数据库连接池指标，只注册一次
func (m *MetricsCollector) RegisterDBStats(reg prometheus.Registerer, db *sql.DB, dbName string) {
	m.dbStatsOnce.Do(func() {
		reg.MustRegister(collectors.NewDBStatsCollector(db, dbName))
	})
}

// StatusCategory 获取状态分类
func StatusCategory(status int) string {
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
	globalOnce      sync.Once
)

// GetGlobalCollector 获取注册在默认 Registry 上的全局指标收集器
func GetGlobalCollector() *MetricsCollector {
	globalOnce.Do(func() {
		globalCollector = NewMetricsCollector(prometheus.DefaultRegisterer)
	})
	return globalCollector
}
