package http

import (
	"fmt"
	"net"
	"strings"
	"sync/atomic"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	applog "tuition/internal/log"
)

// securityMetrics tracks security-related events.
type securityMetrics struct {
	rateLimitHits      atomic.Int64
	suspiciousRequests atomic.Int64
}

func (m *securityMetrics) snapshot() map[string]int64 {
	return map[string]int64{
		"rateLimitHits":      m.rateLimitHits.Load(),
		"suspiciousRequests": m.suspiciousRequests.Load(),
	}
}

// trustedProxies are the networks allowed to set forwarding headers.
var trustedProxies = []*net.IPNet{
	parsecidr("127.0.0.0/8"),
	parsecidr("10.0.0.0/8"),
	parsecidr("172.16.0.0/12"),
	parsecidr("192.168.0.0/16"),
}

func parsecidr(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("failed to parse trusted proxy CIDR %s: %v", cidr, err))
	}
	return network
}

// clientIPExtractor reads X-Forwarded-For only when the direct peer is a
// trusted proxy.
func clientIPExtractor() echo.IPExtractor {
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, network := range trustedProxies {
		opts = append(opts, echo.TrustIPRange(network))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

var (
	suspiciousPatterns = []string{
		"../", "..\\", ".env", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", ".git", ".ssh",
		"eval(", "javascript:", "<script", "union select",
		"etc/passwd", "cmd.exe",
	}
	suspiciousAgents = []string{
		"sqlmap", "nmap", "nikto", "gobuster", "dirb", "scanner",
	}
	unusualMethods = []string{"TRACE", "TRACK", "DEBUG", "CONNECT"}
)

// detectSuspiciousRequest reports whether a request looks like a vulnerability scan.
func detectSuspiciousRequest(c echo.Context) bool {
	r := c.Request()
	path := strings.ToLower(r.URL.Path)
	query := strings.ToLower(r.URL.RawQuery)
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(path, pattern) || strings.Contains(query, pattern) {
			return true
		}
	}

	userAgent := strings.ToLower(r.UserAgent())
	for _, agent := range suspiciousAgents {
		if strings.Contains(userAgent, agent) {
			return true
		}
	}

	for _, method := range unusualMethods {
		if r.Method == method {
			return true
		}
	}

	if len(r.URL.String()) > 2048 {
		return true
	}
	return strings.Count(r.Header.Get(echo.HeaderXForwardedFor), ",") > 5
}

// suspiciousRequestLogger logs and counts probing requests. They are still
// served; the rate limiter and routing reject them as usual.
func suspiciousRequestLogger(metrics *securityMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if detectSuspiciousRequest(c) {
				metrics.suspiciousRequests.Add(1)
				ctx := c.Request().Context()
				applog.FromContext(ctx).WarnContext(ctx, "Suspicious request detected",
					applog.FieldClientIP, c.RealIP(),
					applog.FieldMethod, c.Request().Method,
					applog.FieldPath, c.Request().URL.Path,
					applog.FieldUserAgent, c.Request().UserAgent())
			}
			return next(c)
		}
	}
}

// secureHeaders is the header set sent on every response.
var secureHeaders = middleware.SecureConfig{
	XSSProtection:         "1; mode=block",
	ContentTypeNosniff:    "nosniff",
	XFrameOptions:         "DENY",
	HSTSMaxAge:            31536000,
	ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
	ReferrerPolicy:        "strict-origin-when-cross-origin",
}
