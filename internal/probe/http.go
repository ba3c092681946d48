package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const maxRedirectHops = 12

type bodySample struct {
	snippet   string
	latencyMs int64
}

// probeHTTP performs spec.md §4.3 steps 4-5: issue GET on the original URL
// without auto-following redirects, follow 301/302/303/307/308 manually up
// to maxRedirectHops, combining a relative Location against the current
// URL and detecting loops via a seen-URL set. On a repeated URL the loop
// terminates and the last response is evaluated as final, per the
// Open-Question decision recorded in DESIGN.md (kept as specified).
func (e *Engine) probeHTTP(ctx context.Context, target string) (finalURL string, resp *http.Response, body bodySample, err error) {
	current := target
	seen := make(map[string]bool)
	start := time.Now()

	for hop := 0; hop <= maxRedirectHops; hop++ {
		if seen[current] {
			break
		}
		seen[current] = true

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if reqErr != nil {
			return current, nil, bodySample{}, reqErr
		}
		req.Header.Set("User-Agent", "WebsiteMonitor")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Encoding", "gzip, deflate, br")

		r, doErr := e.Client.Do(req)
		if doErr != nil {
			return current, nil, bodySample{}, doErr
		}

		if !isRedirectStatus(r.StatusCode) || hop == maxRedirectHops {
			sample := readBodySample(r)
			sample.latencyMs = time.Since(start).Milliseconds()
			return current, r, sample, nil
		}

		loc := r.Header.Get("Location")
		io.Copy(io.Discard, r.Body)
		r.Body.Close()
		if loc == "" {
			sample := bodySample{latencyMs: time.Since(start).Milliseconds()}
			return current, r, sample, nil
		}

		next, resolveErr := resolveRedirect(current, loc)
		if resolveErr != nil {
			sample := bodySample{latencyMs: time.Since(start).Milliseconds()}
			return current, r, sample, nil
		}
		resp = r
		current = next
	}

	if resp != nil {
		sample := bodySample{latencyMs: time.Since(start).Milliseconds()}
		return current, resp, sample, nil
	}
	return current, nil, bodySample{}, fmt.Errorf("probe: redirect loop with no response")
}

func isRedirectStatus(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func resolveRedirect(current, location string) (string, error) {
	base, err := url.Parse(current)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// formatHeaderBlob renders headers as "Key: v1, v2\n" lines in
// deterministic (sorted key) order, matching spec.md §4.4's input shape.
func formatHeaderBlob(h http.Header) string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(strings.Join(h[k], ", "))
		sb.WriteString("\n")
	}
	return sb.String()
}
