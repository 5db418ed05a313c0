package security

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"slices"
	"strings"
	"sync/atomic"

	"sheetexpense/internal/log"
)

// Nothing under these routes legitimately contains these fragments: the API
// takes years, month names, category names and numeric row ids.
var (
	probeFragments = []string{
		"../", "..\\", "%2e%2e", ".env", ".git", ".ssh", "wp-admin", "wp-login",
		"phpmyadmin", ".php", "etc/passwd", "cmd.exe", "<script", "javascript:",
		"union select", "sleep(", "eval(",
	}
	scannerAgents = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab", "nuclei"}
	probeMethods  = []string{"TRACE", "TRACK", "DEBUG", "CONNECT", "PROPFIND"}
)

const (
	maxURLLength    = 2048
	maxForwardedHop = 6
)

// DetectionMetrics counts flagged requests and unusable forwarding headers.
type DetectionMetrics struct {
	SuspiciousRequests int64
	InvalidIPAttempts  int64
}

// Detector flags scanner traffic and resolves the client address, trusting
// forwarding headers only from configured proxy networks.
type Detector struct {
	suspicious atomic.Int64
	invalidIP  atomic.Int64
	trusted    []netip.Prefix
}

// NewDetector trusts loopback and the private ranges a reverse proxy
// usually sits in.
func NewDetector() *Detector {
	d := &Detector{}
	for _, cidr := range []string{"127.0.0.0/8", "::1/128", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"} {
		d.trusted = append(d.trusted, netip.MustParsePrefix(cidr))
	}
	return d
}

// AddTrustedProxy trusts forwarding headers set by peers in cidr.
func (d *Detector) AddTrustedProxy(cidr string) error {
	p, err := netip.ParsePrefix(strings.TrimSpace(cidr))
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.trusted = append(d.trusted, p.Masked())
	return nil
}

// DetectSuspiciousRequest reports whether r looks like a probe. Flagged
// requests are counted, never blocked.
func (d *Detector) DetectSuspiciousRequest(r *http.Request) bool {
	if !d.looksLikeProbe(r) {
		return false
	}
	d.suspicious.Add(1)
	return true
}

func (d *Detector) looksLikeProbe(r *http.Request) bool {
	if slices.Contains(probeMethods, r.Method) || len(r.URL.String()) > maxURLLength {
		return true
	}
	target := strings.ToLower(r.URL.Path + "?" + r.URL.RawQuery)
	if containsAny(target, probeFragments) {
		return true
	}
	if containsAny(strings.ToLower(r.UserAgent()), scannerAgents) {
		return true
	}
	return strings.Count(r.Header.Get("X-Forwarded-For"), ",") >= maxForwardedHop
}

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}

// ExtractClientIP returns the peer address, or for a trusted peer the
// nearest untrusted hop in X-Forwarded-For, falling back to X-Real-IP.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !d.isTrusted(peer) {
		return host
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				d.invalidIP.Add(1)
				break
			}
			if !d.isTrusted(addr) || i == 0 {
				return addr.String()
			}
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.String()
	}
	return host
}

func (d *Detector) isTrusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range d.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// GetMetrics returns the current counters.
func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		SuspiciousRequests: d.suspicious.Load(),
		InvalidIPAttempts:  d.invalidIP.Load(),
	}
}

// Middleware logs suspicious requests and passes them through.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d.DetectSuspiciousRequest(r) {
			slog.WarnContext(r.Context(), "Suspicious request detected",
				log.FieldClientIP, d.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.UserAgent())
		}
		next.ServeHTTP(w, r)
	})
}
