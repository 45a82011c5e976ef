package middleware

import (
	"strconv"
	"time"

	"coupon_hub/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// MetricsMiddleware 记录 HTTP 请求指标
func MetricsMiddleware(m *metrics.MetricsCollector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			// 未匹配路由统一归类，避免标签基数膨胀
			endpoint = "unmatched"
		}
		m.RecordHTTPRequest(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
			c.Writer.Size(),
		)
	}
}
