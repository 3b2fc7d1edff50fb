package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/planboard/internal/store/breaker"
	"github.com/monocle-dev/planboard/internal/store/memstore"
	"github.com/sirupsen/logrus/hooks/test"
)

type downStore struct {
	*memstore.Store
}

func (downStore) Ping(context.Context) error {
	return errors.New("connection refused")
}

func healthBody(t *testing.T, store Pinger) map[string]string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, _ := test.NewNullLogger()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/health", nil)

	NewHealthHandler(store, log).HealthCheck(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body
}

func TestHealthReportsBreakerState(t *testing.T) {
	log, _ := test.NewNullLogger()

	tests := []struct {
		name        string
		store       Pinger
		pings       int
		wantStore   string
		wantBreaker string
	}{
		{
			name:      "plain store",
			store:     memstore.New(),
			wantStore: "ok",
		},
		{
			name:        "closed breaker",
			store:       breaker.New(memstore.New(), breaker.Options{}, log),
			wantStore:   "ok",
			wantBreaker: "closed",
		},
		{
			name:        "open breaker",
			store:       breaker.New(downStore{memstore.New()}, breaker.Options{Failures: 1, Timeout: time.Minute}, log),
			pings:       1,
			wantStore:   "unavailable",
			wantBreaker: "open",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < tt.pings; i++ {
				_ = tt.store.Ping(context.Background())
			}

			body := healthBody(t, tt.store)
			if body["store"] != tt.wantStore {
				t.Errorf("store = %q, want %q", body["store"], tt.wantStore)
			}
			if body["breaker"] != tt.wantBreaker {
				t.Errorf("breaker = %q, want %q", body["breaker"], tt.wantBreaker)
			}
		})
	}
}
