package security

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"

	applog "splitledger/internal/log"
)

// Detector flags suspicious requests and resolves client IPs behind
// trusted proxies.
type Detector struct {
	trustedProxies []*net.IPNet

	suspiciousRequests int64
	invalidIPAttempts  int64
}

// NewDetector creates a detector trusting the usual private proxy ranges.
func NewDetector() *Detector {
	return &Detector{
		trustedProxies: []*net.IPNet{
			mustCIDR("127.0.0.0/8"),
			mustCIDR("10.0.0.0/8"),
			mustCIDR("172.16.0.0/12"),
			mustCIDR("192.168.0.0/16"),
		},
	}
}

func mustCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("bad built-in proxy CIDR %s: %v", cidr, err))
	}
	return network
}

// attackPatterns are fragments that have no business appearing in a path or
// query of this API. Scripted clients and plain curl are normal here, so
// the User-Agent is deliberately not a signal.
var attackPatterns = []string{
	"../", "..\\", ".env", ".git", ".ssh",
	"wp-admin", "phpmyadmin", "admin.php", "config.php",
	"etc/passwd", "cmd.exe",
	"<script", "javascript:", "eval(",
	"union select", "or 1=1",
}

// DetectSuspiciousRequest reports whether the request looks like a scan or
// an injection attempt. Detection is observational only; flagged requests
// are still served.
func (d *Detector) DetectSuspiciousRequest(r *http.Request) bool {
	suspicious := false

	target := strings.ToLower(r.URL.Path + "?" + r.URL.RawQuery)
	for _, pattern := range attackPatterns {
		if strings.Contains(target, pattern) {
			suspicious = true
			break
		}
	}

	// Methods no JSON client of this API ever sends.
	switch r.Method {
	case "TRACE", "TRACK", "DEBUG", "CONNECT":
		suspicious = true
	}

	if len(r.URL.String()) > 2048 {
		suspicious = true
	}

	// A long forwarding chain usually means forged headers rather than
	// five real proxies.
	if xff := r.Header.Get("X-Forwarded-For"); strings.Count(xff, ",") > 5 {
		suspicious = true
	}

	if suspicious {
		atomic.AddInt64(&d.suspiciousRequests, 1)
	}
	return suspicious
}

// Middleware logs flagged requests and passes every request through.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d.DetectSuspiciousRequest(r) {
			fields := applog.NewFields().
				WithComponent(applog.ComponentSecurity).
				WithClientIP(d.ExtractClientIP(r))
			fields[applog.FieldMethod] = r.Method
			fields[applog.FieldPath] = r.URL.Path
			slog.WarnContext(r.Context(), "Suspicious request", fields.ToSlice()...)
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractClientIP resolves the real client IP. Forwarded headers are only
// honored when the direct peer is a trusted proxy, otherwise any client
// could spoof its own address past the rate limiter.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsedDirectIP := net.ParseIP(directIP)
	if parsedDirectIP == nil {
		atomic.AddInt64(&d.invalidIPAttempts, 1)
		return directIP
	}

	if d.isTrustedProxy(parsedDirectIP) {
		// First hop in X-Forwarded-For is the original client.
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			clientIP := strings.TrimSpace(strings.Split(xff, ",")[0])
			if net.ParseIP(clientIP) != nil {
				return clientIP
			}
			atomic.AddInt64(&d.invalidIPAttempts, 1)
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if net.ParseIP(xri) != nil {
				return xri
			}
			atomic.AddInt64(&d.invalidIPAttempts, 1)
		}
	}

	return directIP
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// AddTrustedProxy extends the trusted proxy ranges, typically from
// deployment configuration.
func (d *Detector) AddTrustedProxy(cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}

	d.trustedProxies = append(d.trustedProxies, network)
	return nil
}

// Metrics is a snapshot of detection counters for the status endpoint.
type Metrics struct {
	SuspiciousRequests int64
	InvalidIPAttempts  int64
}

// GetMetrics returns current detection metrics.
func (d *Detector) GetMetrics() Metrics {
	return Metrics{
		SuspiciousRequests: atomic.LoadInt64(&d.suspiciousRequests),
		InvalidIPAttempts:  atomic.LoadInt64(&d.invalidIPAttempts),
	}
}
