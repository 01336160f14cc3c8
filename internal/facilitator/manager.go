package facilitator

import (
	"context"
	"fmt"
	"sync"

	"github.com/cedrospay/x402-gateway/internal/circuitbreaker"
	"github.com/cedrospay/x402-gateway/internal/config"
	"github.com/rs/zerolog/log"
)

// Info describes the manager's current primary/fallback state, surfaced on
// the /facilitator discovery endpoint and embedded in every 402 challenge.
type Info struct {
	Primary  AdapterInfo  `json:"primary"`
	Fallback *AdapterInfo `json:"fallback,omitempty"`
}

// AdapterInfo is the public name/type/availability view of one adapter.
type AdapterInfo struct {
	Name      string `json:"name"`
	Type      Type   `json:"type"`
	Available bool   `json:"available"`
}

// Manager holds the configured primary and optional fallback facilitator,
// plus an on-demand cache of adapters constructed for a forced type that is
// neither primary nor fallback. It never holds a lock across a Verify/Settle
// call: the cache lock only ever guards map access.
type Manager struct {
	primary  Facilitator
	fallback Facilitator

	cfg     config.FacilitatorConfig
	breaker *circuitbreaker.Manager

	mu    sync.Mutex
	cache map[Type]Facilitator
}

// NewManager resolves the configured primary/fallback facilitators,
// constructing concrete adapters from cfg. auto resolution is deterministic
// and logged: self-hosted primary with remoteA fallback if the signer is
// available, else remoteA primary with remoteC fallback.
func NewManager(cfg config.FacilitatorConfig, selfHosted *SelfHosted, breaker *circuitbreaker.Manager) (*Manager, error) {
	m := &Manager{
		cfg:     cfg,
		breaker: breaker,
		cache:   make(map[Type]Facilitator),
	}

	if selfHosted != nil {
		m.cache[TypeSelfHosted] = selfHosted
	}

	primaryType := Type(cfg.Type)
	if primaryType == TypeAuto {
		primaryType = m.resolveAuto()
	}

	primary, err := m.adapterFor(primaryType)
	if err != nil {
		return nil, fmt.Errorf("facilitator manager: resolve primary %q: %w", primaryType, err)
	}
	m.primary = primary

	if cfg.EnableFallback && cfg.FallbackType != "" {
		fallback, err := m.adapterFor(Type(cfg.FallbackType))
		if err != nil {
			return nil, fmt.Errorf("facilitator manager: resolve fallback %q: %w", cfg.FallbackType, err)
		}
		m.fallback = fallback
	} else if primaryType == TypeSelfHosted {
		if fb, err := m.adapterFor(TypeRemoteA); err == nil {
			m.fallback = fb
		}
	}

	log.Info().
		Str("primary", string(m.primary.Type())).
		Bool("has_fallback", m.fallback != nil).
		Msg("facilitator.manager.resolved")

	return m, nil
}

// resolveAuto implements spec's deterministic auto-resolution: self-hosted
// primary with remoteA fallback when the signer is configured, else remoteA
// primary with remoteC fallback.
func (m *Manager) resolveAuto() Type {
	if sh, ok := m.cache[TypeSelfHosted]; ok && sh.Available() {
		return TypeSelfHosted
	}
	return TypeRemoteA
}

// adapterFor returns a cached adapter for typ, constructing and caching a
// remote adapter on demand from config if it wasn't built at startup.
func (m *Manager) adapterFor(typ Type) (Facilitator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.cache[typ]; ok {
		return a, nil
	}

	var a Facilitator
	switch typ {
	case TypeRemoteA:
		a = NewRemoteCodeNut(m.cfg.RemoteA)
	case TypeRemoteB:
		a = NewRemoteCorbits(m.cfg.RemoteB)
	case TypeRemoteC:
		a = NewRemotePayAI(m.cfg.RemoteC)
	default:
		return nil, fmt.Errorf("unknown or unconfigured facilitator type %q", typ)
	}

	m.cache[typ] = a
	return a, nil
}

// NewManagerFromAdapters builds a Manager around already-constructed
// adapters, bypassing config-driven resolution. Used where the caller
// already holds concrete adapters, e.g. test harnesses exercising the
// verify/settle pipeline without a live facilitator backend.
func NewManagerFromAdapters(primary, fallback Facilitator, breaker *circuitbreaker.Manager) *Manager {
	m := &Manager{
		breaker: breaker,
		cache:   make(map[Type]Facilitator),
		primary: primary,
	}
	if primary != nil {
		m.cache[primary.Type()] = primary
	}
	if fallback != nil {
		m.fallback = fallback
		m.cache[fallback.Type()] = fallback
	}
	return m
}

// Info reports the manager's current primary/fallback state.
func (m *Manager) Info() Info {
	info := Info{Primary: AdapterInfo{Name: m.primary.Name(), Type: m.primary.Type(), Available: m.primary.Available()}}
	if m.fallback != nil {
		fb := AdapterInfo{Name: m.fallback.Name(), Type: m.fallback.Type(), Available: m.fallback.Available()}
		info.Fallback = &fb
	}
	return info
}

// Result wraps a verify or settle outcome with the name of the adapter that
// produced it, for the middleware's error/receipt annotations.
type Result struct {
	Facilitator string
	Verify      *VerifyResult
	Settle      *SettleResult
}

// Verify tries forceType exclusively when set; otherwise tries primary, then
// falls back to the fallback adapter if primary reports valid=false.
func (m *Manager) Verify(ctx context.Context, payload Payload, req Requirements, forceType string) (Result, error) {
	if forceType != "" {
		a, err := m.forcedAdapter(forceType)
		if err != nil {
			return Result{Facilitator: forceType + " (unavailable)"}, err
		}
		res, err := m.callVerify(ctx, a, payload, req)
		return Result{Facilitator: a.Name(), Verify: &res}, err
	}

	res, err := m.callVerify(ctx, m.primary, payload, req)
	if err != nil {
		return Result{Facilitator: m.primary.Name()}, err
	}
	if res.Valid || m.fallback == nil {
		return Result{Facilitator: m.primary.Name(), Verify: &res}, nil
	}

	fbRes, err := m.callVerify(ctx, m.fallback, payload, req)
	if err != nil {
		return Result{Facilitator: m.fallback.Name()}, err
	}
	return Result{Facilitator: m.fallback.Name(), Verify: &fbRes}, nil
}

// Settle mirrors Verify's fallback semantics, but must be invoked against
// the same facilitator name that Verify returned for this request.
func (m *Manager) Settle(ctx context.Context, payload Payload, req Requirements, forceType string) (Result, error) {
	if forceType != "" {
		a, err := m.forcedAdapter(forceType)
		if err != nil {
			return Result{Facilitator: forceType + " (unavailable)"}, err
		}
		res, err := m.callSettle(ctx, a, payload, req)
		return Result{Facilitator: a.Name(), Settle: &res}, err
	}

	res, err := m.callSettle(ctx, m.primary, payload, req)
	if err != nil {
		return Result{Facilitator: m.primary.Name()}, err
	}
	if res.Settled || m.fallback == nil {
		return Result{Facilitator: m.primary.Name(), Settle: &res}, nil
	}

	fbRes, err := m.callSettle(ctx, m.fallback, payload, req)
	if err != nil {
		return Result{Facilitator: m.fallback.Name()}, err
	}
	return Result{Facilitator: m.fallback.Name(), Settle: &fbRes}, nil
}

// forcedAdapter resolves a client-forced type against primary, fallback, or
// an on-demand construction — never silently substituting another type.
func (m *Manager) forcedAdapter(forceType string) (Facilitator, error) {
	typ := Type(forceType)
	if m.primary.Type() == typ {
		return m.primary, nil
	}
	if m.fallback != nil && m.fallback.Type() == typ {
		return m.fallback, nil
	}
	a, err := m.adapterFor(typ)
	if err != nil || !a.Available() {
		return nil, fmt.Errorf("facilitator %q not available", forceType)
	}
	return a, nil
}

func (m *Manager) callVerify(ctx context.Context, a Facilitator, payload Payload, req Requirements) (VerifyResult, error) {
	if !a.Available() {
		return VerifyResult{Valid: false, InvalidReason: "facilitator not available"}, nil
	}
	out, err := m.breaker.Execute(circuitbreaker.ServiceFacilitator, func() (interface{}, error) {
		return a.Verify(ctx, payload, req)
	})
	if err != nil {
		return VerifyResult{}, err
	}
	return out.(VerifyResult), nil
}

func (m *Manager) callSettle(ctx context.Context, a Facilitator, payload Payload, req Requirements) (SettleResult, error) {
	if !a.Available() {
		return SettleResult{Settled: false, ErrorReason: "facilitator not available"}, nil
	}
	out, err := m.breaker.Execute(circuitbreaker.ServiceFacilitator, func() (interface{}, error) {
		return a.Settle(ctx, payload, req)
	})
	if err != nil {
		return SettleResult{}, err
	}
	return out.(SettleResult), nil
}
