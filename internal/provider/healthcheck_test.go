package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestProbeMethodFor(t *testing.T) {
	tests := []struct {
		chains []string
		want   string
	}{
		{[]string{"solana"}, "getSlot"},
		{[]string{"ethereum"}, "eth_blockNumber"},
		{[]string{"base"}, "eth_blockNumber"},
		{nil, "getSlot"},
	}
	for _, tt := range tests {
		got := probeMethodFor(Provider{Chains: tt.chains})
		if got != tt.want {
			t.Errorf("probeMethodFor(%v) = %q, want %q", tt.chains, got, tt.want)
		}
	}
}

func TestProbeOne_SuccessRecordsLatency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":123}`))
	}))
	defer srv.Close()

	r := NewRegistry(5*time.Second, nil)
	_ = r.Register(Provider{ID: "p1", Endpoint: srv.URL})

	r.probeOne(context.Background(), mustGet(r, "p1"))

	h, _ := r.GetHealth("p1")
	if h.Status != HealthHealthy {
		t.Errorf("health.Status = %v, want healthy", h.Status)
	}
}

func TestProbeOne_NonJSONRPCBodyFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	r := NewRegistry(5*time.Second, nil)
	_ = r.Register(Provider{ID: "p1", Endpoint: srv.URL})

	r.probeOne(context.Background(), mustGet(r, "p1"))

	h, _ := r.GetHealth("p1")
	if h.ConsecutiveFailures != 1 {
		t.Errorf("ConsecutiveFailures = %d, want 1", h.ConsecutiveFailures)
	}
}

func TestProbeOne_5xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewRegistry(5*time.Second, nil)
	_ = r.Register(Provider{ID: "p1", Endpoint: srv.URL})

	r.probeOne(context.Background(), mustGet(r, "p1"))

	h, _ := r.GetHealth("p1")
	if h.ConsecutiveFailures != 1 {
		t.Errorf("ConsecutiveFailures = %d, want 1", h.ConsecutiveFailures)
	}
}

func TestProbeAll_ConcurrentDoesNotBlockOnSlowProvider(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":1}`))
	}))
	defer slow.Close()

	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":1}`))
	}))
	defer fast.Close()

	r := NewRegistry(5*time.Second, nil)
	_ = r.Register(Provider{ID: "slow", Endpoint: slow.URL})
	_ = r.Register(Provider{ID: "fast", Endpoint: fast.URL})

	start := time.Now()
	r.probeAll(context.Background())
	elapsed := time.Since(start)

	if elapsed > 300*time.Millisecond {
		t.Errorf("probeAll took %v, expected concurrent fan-out under 300ms", elapsed)
	}

	hs, _ := r.GetHealth("slow")
	hf, _ := r.GetHealth("fast")
	if hs.Status != HealthHealthy || hf.Status != HealthHealthy {
		t.Errorf("expected both healthy, got slow=%v fast=%v", hs.Status, hf.Status)
	}
}

func TestProbeOne_URLLessSkipped(t *testing.T) {
	r := NewRegistry(5*time.Second, nil)
	_ = r.Register(Provider{ID: "p1", Endpoint: ""})

	before, _ := r.GetHealth("p1")
	r.probeOne(context.Background(), mustGet(r, "p1"))
	after, _ := r.GetHealth("p1")

	if before.LastCheck != after.LastCheck {
		t.Error("expected URL-less provider probe to be a no-op")
	}
}

func mustGet(r *Registry, id string) Provider {
	p, _ := r.Get(id)
	return p
}
