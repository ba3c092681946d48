// Package probe implements the DNS + TCP + HTTP probe pipeline of
// spec.md §4.3: URL parse, DNS resolution, ordered TCP dial attempts,
// manual-redirect HTTP GET, body sampling with transport decompression,
// expected-status evaluation, login-heuristic classification, and the
// 401/403-plus-login-detected override, all under a 45-second per-target
// timeout linked to the caller's context.
//
// Grounded on the teacher's internal/provider.ProbeOne (timed GET, status
// classification, body preview, custom User-Agent), internal/health.
// CheckProvider/CheckEndpoints (context-scoped GET with a dedicated
// short-timeout client), and internal/indexer.probeURL (body-sniff-after-200).
package probe

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sitewatch/sitewatch/internal/loginsig"
	"github.com/sitewatch/sitewatch/internal/safeurl"
)

const perTargetTimeout = 45 * time.Second

// Target is the subset of internal/store.Target the probe engine needs.
type Target struct {
	URL                   string
	HTTPExpectedStatusMin int
	HTTPExpectedStatusMax int
}

// Result is the structured probe outcome, matching spec.md §4.3.
type Result struct {
	TcpOk             bool
	TcpLatencyMs      int64
	UsedIP            *string
	HttpOk            bool
	HttpStatusCode    *int
	HttpLatencyMs     int64
	FinalURL          string
	LoginDetected     bool
	DetectedLoginType *string
	Summary           string
}

// DnsResolver is the probe engine's capability surface for DNS resolution,
// mockable for tests (spec.md §9).
type DnsResolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// TcpDialer is the probe engine's capability surface for raw TCP connects.
type TcpDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// ProbeClient is the probe engine's capability surface for issuing HTTP
// requests without following redirects automatically.
type ProbeClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Engine runs the probe pipeline against one Target at a time. Per-host
// pacing uses golang.org/x/time/rate so repeated re-probes against one slow
// host don't starve the scheduler's concurrency semaphore — a generalization
// of the teacher's internal/httpclient.HostSemaphore from "N concurrent" to
// "N per second".
type Engine struct {
	Resolver DnsResolver
	Dialer   TcpDialer
	Client   ProbeClient

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

// NewEngine returns an Engine wired with stdlib DNS/TCP and an HTTP client
// that never auto-follows redirects (the engine follows manually).
func NewEngine() *Engine {
	resolver := net.DefaultResolver
	dialer := &net.Dialer{}
	transport := &http.Transport{
		ResponseHeaderTimeout: 20 * time.Second,
		ExpectContinueTimeout: 5 * time.Second,
		IdleConnTimeout:       30 * time.Second,
	}
	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &Engine{
		Resolver: resolver,
		Dialer:   dialer,
		Client:   client,
		limiters: make(map[string]*rate.Limiter),
	}
}

// limiterFor returns the per-host token bucket for host, creating one
// (1 request/second, burst 2) on first use.
func (e *Engine) limiterFor(host string) *rate.Limiter {
	e.limitersMu.Lock()
	defer e.limitersMu.Unlock()
	l, ok := e.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(1), 2)
		e.limiters[host] = l
	}
	return l
}

// Probe runs the full pipeline against t under a 45-second timeout linked
// to ctx.
func (e *Engine) Probe(ctx context.Context, t Target) Result {
	ctx, cancel := context.WithTimeout(ctx, perTargetTimeout)
	defer cancel()

	if !safeurl.IsHTTPOrHTTPS(t.URL) {
		return Result{Summary: summarize(false, 0, false, nil, 0)}
	}
	parsed, err := url.Parse(t.URL)
	if err != nil {
		return Result{Summary: summarize(false, 0, false, nil, 0)}
	}

	if limiter := e.limiterFor(parsed.Hostname()); limiter != nil {
		_ = limiter.Wait(ctx)
	}

	ips := e.resolveHost(ctx, parsed.Hostname())

	tcpOk, tcpLatency, usedIP := e.probeTCP(ctx, parsed, ips)

	finalURL, resp, body, httpErr := e.probeHTTP(ctx, t.URL)
	httpOk := false
	var statusCode *int
	var httpLatency int64
	var loginDetected bool
	var loginType *string

	if httpErr == nil && resp != nil {
		code := resp.StatusCode
		statusCode = &code
		httpLatency = body.latencyMs
		httpOk = code >= t.HTTPExpectedStatusMin && code <= t.HTTPExpectedStatusMax

		headerBlob := formatHeaderBlob(resp.Header)
		verdict := loginsig.Classify(finalURL, headerBlob, body.snippet)
		loginDetected = verdict.LoginDetected
		if verdict.LoginType != "" {
			lt := verdict.LoginType
			loginType = &lt
		}

		// Login-gated override (spec.md §4.3 step 8): an authentication
		// surface behind 401/403 is treated as reachable.
		if !httpOk && (code == http.StatusUnauthorized || code == http.StatusForbidden) && loginDetected {
			httpOk = true
		}
	}

	return Result{
		TcpOk:             tcpOk,
		TcpLatencyMs:      tcpLatency,
		UsedIP:            usedIP,
		HttpOk:            httpOk,
		HttpStatusCode:    statusCode,
		HttpLatencyMs:     httpLatency,
		FinalURL:          finalURL,
		LoginDetected:     loginDetected,
		DetectedLoginType: loginType,
		Summary:           summarize(tcpOk, tcpLatency, httpOk, statusCode, httpLatency),
	}
}
