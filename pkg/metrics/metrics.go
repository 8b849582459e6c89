package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 后端调用延迟（秒）
	BackendCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_call_latency_seconds",
			Help:    "Monitoring backend call latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"endpoint", "status"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation", "table"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Total number of slow database queries",
		},
		[]string{"command"},
	)

	// 缓存命中/未命中
	StoreCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_cache_requests_total",
			Help: "Client store fetches by collection and result",
		},
		[]string{"collection", "result"}, // result: hit, miss, stale_fallback
	)

	// 文件上传/删除计数
	UploadCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upload_operations_total",
			Help: "Signed-URL upload and delete operations",
		},
		[]string{"operation", "status"}, // operation: upload, delete
	)

	// 跨实例缓存失效事件
	CacheInvalidationEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_invalidation_events_total",
			Help: "Consumed cache.invalidated events by collection and result",
		},
		[]string{"collection", "result"}, // result: applied, own, duplicate, unknown
	)

	// 报表生成计数
	ReportGeneratedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_generated_total",
			Help: "Total number of generated progress reports",
		},
		[]string{"status"},
	)
)

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordBackendCallLatency 记录后端调用延迟
func RecordBackendCallLatency(endpoint, status string, duration time.Duration) {
	BackendCallLatency.WithLabelValues(endpoint, status).Observe(duration.Seconds())
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementSlowQuery 增加慢查询计数
func IncrementSlowQuery(command string) {
	SlowQueryCount.WithLabelValues(command).Inc()
}

// IncrementStoreCache 记录缓存命中结果
func IncrementStoreCache(collection, result string) {
	StoreCacheRequests.WithLabelValues(collection, result).Inc()
}

// IncrementUpload 记录上传/删除结果
func IncrementUpload(operation, status string) {
	UploadCount.WithLabelValues(operation, status).Inc()
}

// IncrementCacheInvalidation 记录消费到的失效事件
func IncrementCacheInvalidation(collection, result string) {
	CacheInvalidationEvents.WithLabelValues(collection, result).Inc()
}

// IncrementReportGenerated 记录报表生成结果
func IncrementReportGenerated(status string) {
	ReportGeneratedCount.WithLabelValues(status).Inc()
}
