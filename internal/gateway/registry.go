// Package gateway builds and caches venue gateways from the execution
// profile and hands out the engine bound to each one.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"execution-core/internal/engine"
	"execution-core/internal/events"
	"execution-core/internal/monitor"
	"execution-core/pkg/cache"
	"execution-core/pkg/config"
	"execution-core/pkg/crypto"
	"execution-core/pkg/venue"
)

var (
	ErrVenueNotFound = errors.New("venue not found")
	ErrVaultRequired = errors.New("profile carries encrypted credentials but no CREDENTIAL_KEY is set")
)

const defaultPriceTTL = time.Second

// Deps carries the shared infrastructure every engine is wired with.
type Deps struct {
	Vault    *crypto.Vault // nil when the profile is plaintext-only
	Log      *zap.Logger
	Bus      *events.Bus
	Metrics  *monitor.ExecutionMetrics
	PriceTTL time.Duration
}

type entry struct {
	settings config.VenueSettings
	gw       venue.Gateway
	eng      *engine.Engine
}

// Registry maps venue names to their gateway and engine. Entries are built
// once at startup; lookups afterwards are read-only.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	prices  *cache.PriceCache
	policy  engine.Policy
	deps    Deps
}

// NewRegistry constructs every venue the profile declares and binds an
// engine with the profile's policy to each.
func NewRegistry(profile *config.Profile, deps Deps) (*Registry, error) {
	policy, err := PolicyFromSettings(profile.Policy)
	if err != nil {
		return nil, err
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.PriceTTL <= 0 {
		deps.PriceTTL = defaultPriceTTL
	}

	r := &Registry{
		entries: make(map[string]*entry, len(profile.Venues)),
		prices:  cache.NewPriceCache(),
		policy:  policy,
		deps:    deps,
	}
	for _, vs := range profile.Venues {
		if err := r.add(vs); err != nil {
			return nil, fmt.Errorf("venue %q: %w", vs.Name, err)
		}
	}
	return r, nil
}

func (r *Registry) add(vs config.VenueSettings) error {
	creds, err := r.resolveCredentials(vs)
	if err != nil {
		return err
	}
	gw, err := buildGateway(vs, creds)
	if err != nil {
		return err
	}
	gw = &cachingGateway{Gateway: gw, key: vs.Name, prices: r.prices, ttl: r.deps.PriceTTL}

	eng := engine.New(gw, r.policy)
	eng.Log = r.deps.Log.With(zap.String("venue", vs.Name))
	eng.Bus = r.deps.Bus
	eng.Metrics = r.deps.Metrics

	r.mu.Lock()
	r.entries[vs.Name] = &entry{settings: vs, gw: gw, eng: eng}
	r.mu.Unlock()

	r.deps.Log.Info("venue registered",
		zap.String("venue", vs.Name),
		zap.String("type", vs.Type),
		zap.String("symbol", vs.Symbol))
	return nil
}

// Credentials are the decrypted secrets handed to a gateway constructor.
type Credentials struct {
	APIKey     string
	APISecret  string
	Passphrase string
}

func (r *Registry) resolveCredentials(vs config.VenueSettings) (Credentials, error) {
	creds := Credentials{
		APIKey:     vs.APIKey,
		APISecret:  vs.APISecret,
		Passphrase: vs.Passphrase,
	}
	if vs.APIKeyEncrypted == "" && vs.APISecretEncrypted == "" {
		return creds, nil
	}
	if r.deps.Vault == nil {
		return Credentials{}, ErrVaultRequired
	}
	var err error
	if vs.APIKeyEncrypted != "" {
		if creds.APIKey, err = r.deps.Vault.Decrypt(vs.APIKeyEncrypted); err != nil {
			return Credentials{}, fmt.Errorf("decrypt api key: %w", err)
		}
	}
	if vs.APISecretEncrypted != "" {
		if creds.APISecret, err = r.deps.Vault.Decrypt(vs.APISecretEncrypted); err != nil {
			return Credentials{}, fmt.Errorf("decrypt api secret: %w", err)
		}
	}
	return creds, nil
}

// Engine returns the engine bound to a venue.
func (r *Registry) Engine(name string) (*engine.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVenueNotFound, name)
	}
	return e.eng, nil
}

// Gateway returns the raw gateway for a venue.
func (r *Registry) Gateway(name string) (venue.Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVenueNotFound, name)
	}
	return e.gw, nil
}

// VenueInfo is the public description of a registered venue.
type VenueInfo struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

// Venues lists the registered venues.
func (r *Registry) Venues() []VenueInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]VenueInfo, 0, len(r.entries))
	for _, e := range r.entries {
		symbol := e.settings.Symbol
		if symbol == "" {
			symbol = e.settings.InstrumentID
		}
		out = append(out, VenueInfo{Name: e.settings.Name, Type: e.settings.Type, Symbol: symbol})
	}
	return out
}

// Prices returns the cached last prices with their staleness.
func (r *Registry) Prices() map[string]cache.PriceInfo {
	return r.prices.Snapshot()
}

// PolicyFromSettings converts the YAML policy block into an engine policy.
func PolicyFromSettings(ps config.PolicySettings) (engine.Policy, error) {
	amplitude, err := ps.Amplitude()
	if err != nil {
		return engine.Policy{}, err
	}
	offset, err := ps.Offset()
	if err != nil {
		return engine.Policy{}, err
	}
	p := engine.Policy{
		PriceCancellation:          ps.PriceCancellation,
		PriceCancellationAmplitude: amplitude,
		TimeCancellation:           ps.TimeCancellation,
		TimeCancellationWait:       ps.Wait(),
		AutomaticCancellation:      ps.AutomaticCancellation,
		ReissueOffset:              offset,
		MaxAttempts:                ps.MaxAttempts,
		Deadline:                   ps.Deadline(),
	}
	if err := p.Validate(); err != nil {
		return engine.Policy{}, err
	}
	return p, nil
}

// cachingGateway serves LastPrice from the shared TTL cache so concurrent
// chases on the same venue do not hammer the ticker endpoint.
type cachingGateway struct {
	venue.Gateway
	key    string
	prices *cache.PriceCache
	ttl    time.Duration
}

func (g *cachingGateway) LastPrice(ctx context.Context) (decimal.Decimal, error) {
	if p, ok := g.prices.Get(g.key, g.ttl); ok {
		return p, nil
	}
	p, err := g.Gateway.LastPrice(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	g.prices.Set(g.key, p)
	return p, nil
}
