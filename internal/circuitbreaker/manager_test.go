package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

func TestManager_DisabledPassesThrough(t *testing.T) {
	m := NewManager(Config{Enabled: false})

	calls := 0
	for i := 0; i < 10; i++ {
		_, _ = m.Execute(ServiceUpstreamRPC, func() (interface{}, error) {
			calls++
			return nil, errors.New("boom")
		})
	}

	if calls != 10 {
		t.Errorf("expected all 10 calls to pass through, got %d", calls)
	}
	if m.State(ServiceUpstreamRPC) != "disabled" {
		t.Errorf("expected disabled state, got %s", m.State(ServiceUpstreamRPC))
	}
}

func TestManager_TripsOnConsecutiveFailures(t *testing.T) {
	m := NewManager(Config{
		Enabled: true,
		UpstreamRPC: BreakerConfig{
			MaxRequests:         1,
			Interval:            time.Minute,
			Timeout:             time.Minute,
			ConsecutiveFailures: 3,
		},
	})

	failing := func() (interface{}, error) { return nil, errors.New("upstream down") }

	for i := 0; i < 3; i++ {
		_, _ = m.Execute(ServiceUpstreamRPC, failing)
	}

	if m.State(ServiceUpstreamRPC) != "open" {
		t.Errorf("expected breaker to open after 3 consecutive failures, got %s", m.State(ServiceUpstreamRPC))
	}

	_, err := m.Execute(ServiceUpstreamRPC, func() (interface{}, error) { return "ok", nil })
	if err == nil {
		t.Error("expected open breaker to reject the call")
	}
}

func TestManager_UnconfiguredServicePassesThrough(t *testing.T) {
	m := NewManager(DefaultConfig())

	result, err := m.Execute(ServiceType("unknown_service"), func() (interface{}, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("expected ok, got %v", result)
	}
}
