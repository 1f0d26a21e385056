package enforcer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/portal-service/internal/domain"
)

func testConfig(baseURL string) HTTPConfig {
	return HTTPConfig{
		BaseURL:          baseURL,
		RequestTimeout:   2 * time.Second,
		BreakerMaxReqs:   1,
		BreakerInterval:  time.Second,
		BreakerTimeout:   time.Second,
		BreakerThreshold: 3,
	}
}

func TestHTTPEnforcerApply(t *testing.T) {
	var got applyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/enforce/apply" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := NewHTTP(testConfig(srv.URL), zap.NewNop())
	err := e.Apply(context.Background(), "aa:bb:cc:dd:ee:ff", domain.PolicySnapshot{
		VLAN: 100, IPSet: "portal_guest", PolicyName: "guest-basic",
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got.MAC != "aa:bb:cc:dd:ee:ff" || got.VLAN != 100 || got.IPSet != "portal_guest" {
		t.Errorf("apply payload = %+v", got)
	}
}

func TestHTTPEnforcerRevokeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewHTTP(testConfig(srv.URL), zap.NewNop())
	if err := e.Revoke(context.Background(), "aa:bb:cc:dd:ee:ff"); err == nil {
		t.Fatal("Revoke() expected error on 500")
	}
}

func TestHTTPEnforcerBreakerOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	e := NewHTTP(testConfig(srv.URL), zap.NewNop())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_ = e.Apply(ctx, "aa:bb:cc:dd:ee:ff", domain.PolicySnapshot{})
	}

	// Threshold reached: the breaker should reject without touching the server.
	err := e.Apply(ctx, "aa:bb:cc:dd:ee:ff", domain.PolicySnapshot{})
	if err == nil {
		t.Fatal("Apply() expected breaker rejection")
	}
}
