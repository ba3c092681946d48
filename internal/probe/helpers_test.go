package probe

import (
	"context"
	"net/url"
	"testing"
)

func contextBackground() context.Context {
	return context.Background()
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", raw, err)
	}
	return u
}
