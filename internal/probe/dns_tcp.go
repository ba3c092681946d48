package probe

import (
	"context"
	"net"
	"net/url"
	"time"
)

// resolveHost performs spec.md §4.3 step 2: resolve host to an ordered
// list of IPs. A resolution failure yields an empty list; the pipeline
// continues (the TCP step then dials by hostname).
func (e *Engine) resolveHost(ctx context.Context, host string) []net.IPAddr {
	if net.ParseIP(host) != nil {
		return []net.IPAddr{{IP: net.ParseIP(host)}}
	}
	addrs, err := e.Resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil
	}
	return addrs
}

// probeTCP performs spec.md §4.3 step 3: if IPs resolved, try each in
// order connecting to the URL's port (default 443 for https, 80 for
// http); on first success record tcpOk=true, usedIp=<that IP>, and
// elapsed ms. If all fail, tcpOk=false with the first IP recorded. If no
// IPs were resolved, connect by hostname and leave usedIp null.
func (e *Engine) probeTCP(ctx context.Context, u *url.URL, ips []net.IPAddr) (ok bool, latencyMs int64, usedIP *string) {
	port := defaultPort(u)

	if len(ips) == 0 {
		start := time.Now()
		conn, err := e.Dialer.DialContext(ctx, "tcp", net.JoinHostPort(u.Hostname(), port))
		elapsed := time.Since(start).Milliseconds()
		if err != nil {
			return false, elapsed, nil
		}
		conn.Close()
		return true, elapsed, nil
	}

	var firstIP string
	for i, addr := range ips {
		ipStr := addr.IP.String()
		if i == 0 {
			firstIP = ipStr
		}
		start := time.Now()
		conn, err := e.Dialer.DialContext(ctx, "tcp", net.JoinHostPort(ipStr, port))
		elapsed := time.Since(start).Milliseconds()
		if err == nil {
			conn.Close()
			ip := ipStr
			return true, elapsed, &ip
		}
	}
	return false, 0, &firstIP
}

func defaultPort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	if u.Scheme == "https" {
		return "443"
	}
	return "80"
}
