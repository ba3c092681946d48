package probe

import (
	"bytes"
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProbe_healthyTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	e := NewEngine()
	result := e.Probe(contextBackground(), Target{URL: srv.URL, HTTPExpectedStatusMin: 200, HTTPExpectedStatusMax: 399})

	if !result.TcpOk {
		t.Error("expected TcpOk")
	}
	if !result.HttpOk {
		t.Errorf("expected HttpOk, got %+v", result)
	}
	if result.HttpStatusCode == nil || *result.HttpStatusCode != 200 {
		t.Errorf("expected status 200, got %+v", result.HttpStatusCode)
	}
}

func TestProbe_unexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewEngine()
	result := e.Probe(contextBackground(), Target{URL: srv.URL, HTTPExpectedStatusMin: 200, HTTPExpectedStatusMax: 399})

	if !result.TcpOk {
		t.Error("expected TcpOk (connection succeeded)")
	}
	if result.HttpOk {
		t.Errorf("expected HttpOk=false for 500, got %+v", result)
	}
}

func TestProbe_loginGatedOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`<form><input type="password"></form>`))
	}))
	defer srv.Close()

	e := NewEngine()
	result := e.Probe(contextBackground(), Target{URL: srv.URL, HTTPExpectedStatusMin: 200, HTTPExpectedStatusMax: 399})

	if !result.LoginDetected || result.DetectedLoginType == nil || *result.DetectedLoginType != "PasswordForm" {
		t.Errorf("expected PasswordForm detection, got %+v", result)
	}
	if !result.HttpOk {
		t.Errorf("expected login-gated override to set HttpOk=true, got %+v", result)
	}
}

func TestProbe_redirectFollowed(t *testing.T) {
	var finalHit bool
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		finalHit = true
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	e := NewEngine()
	result := e.Probe(contextBackground(), Target{URL: srv.URL + "/start", HTTPExpectedStatusMin: 200, HTTPExpectedStatusMax: 399})

	if !finalHit {
		t.Error("expected redirect to be followed to /final")
	}
	if !result.HttpOk {
		t.Errorf("expected HttpOk after redirect, got %+v", result)
	}
	if result.FinalURL != srv.URL+"/final" {
		t.Errorf("FinalURL = %q, want %s/final", result.FinalURL, srv.URL)
	}
}

func TestProbe_gzipBodyDecompressed(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte(`login with your username and <form>`))
	gz.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	e := NewEngine()
	result := e.Probe(contextBackground(), Target{URL: srv.URL, HTTPExpectedStatusMin: 200, HTTPExpectedStatusMax: 399})

	if !result.LoginDetected || result.DetectedLoginType == nil || *result.DetectedLoginType != "LoginPage" {
		t.Errorf("expected LoginPage detection from decompressed body, got %+v", result)
	}
}

func TestProbe_invalidURL(t *testing.T) {
	e := NewEngine()
	result := e.Probe(contextBackground(), Target{URL: "ftp://example.com/file", HTTPExpectedStatusMin: 200, HTTPExpectedStatusMax: 399})
	if result.TcpOk || result.HttpOk {
		t.Errorf("expected all-failed result for non-http(s) scheme, got %+v", result)
	}
}

func TestDefaultPort(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://example.com/", "443"},
		{"http://example.com/", "80"},
		{"http://example.com:8080/", "8080"},
	}
	for _, tt := range tests {
		u := mustParseURL(t, tt.raw)
		if got := defaultPort(u); got != tt.want {
			t.Errorf("defaultPort(%s) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	code200 := 200
	code500 := 500
	tests := []struct {
		name   string
		tcpOk  bool
		httpOk bool
		code   *int
		want   string
	}{
		{"all ok", true, true, &code200, "TCP OK (10ms); HTTP OK (200, 20ms)"},
		{"tcp fail", false, false, nil, "TCP FAIL; HTTP FAIL"},
		{"tcp ok http bad status", true, false, &code500, "TCP OK (10ms); HTTP FAIL (500, 20ms)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := summarize(tt.tcpOk, 10, tt.httpOk, tt.code, 20)
			if got != tt.want {
				t.Errorf("summarize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestShouldSample(t *testing.T) {
	tests := []struct {
		ct   string
		want bool
	}{
		{"", true},
		{"text/html; charset=utf-8", true},
		{"application/json", true},
		{"application/xml", true},
		{"image/png", false},
		{"video/mp4", false},
	}
	for _, tt := range tests {
		if got := shouldSample(tt.ct); got != tt.want {
			t.Errorf("shouldSample(%q) = %v, want %v", tt.ct, got, tt.want)
		}
	}
}
