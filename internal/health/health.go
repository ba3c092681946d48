// Package health implements the monitor's /healthz readiness checks, in the
// same "Check returns nil if OK, an explanatory error otherwise" shape the
// teacher's provider/endpoint health checks used.
package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sitewatch/sitewatch/internal/store"
)

// CheckStore verifies the read pool can still reach the database file.
func CheckStore(ctx context.Context, s *store.Store) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.ReadDB().PingContext(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	return nil
}

// Handler returns an http.HandlerFunc that runs every check and responds
// 200 if all pass, 503 with the first failure's message otherwise.
func Handler(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := CheckStore(r.Context(), s); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	}
}
