package provider

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/paratel/numlease/internal/platform/config"
)

// Registry resolves provider names from the offering catalog to adapters.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds one adapter per configured vendor. An unknown mode or
// duplicate name is a configuration error and stops startup.
func NewRegistry(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (*Registry, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.ProviderTimeout}
	}

	adapters := make(map[string]Adapter, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		if _, dup := adapters[pc.Name]; dup {
			return nil, fmt.Errorf("duplicate provider name %q in config", pc.Name)
		}
		switch pc.Mode {
		case "poll":
			adapters[pc.Name] = NewSMSHubAdapter(pc.Name, cfg, httpClient, logger)
		case "webhook":
			adapters[pc.Name] = NewTextwayAdapter(pc.Name, cfg, httpClient, logger)
		default:
			return nil, fmt.Errorf("provider %q: unknown mode %q", pc.Name, pc.Mode)
		}
	}
	return &Registry{adapters: adapters}, nil
}

// NewRegistryFromAdapters wires explicit adapters, used by tests.
func NewRegistryFromAdapters(adapters ...Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	return &Registry{adapters: m}
}

// Adapter returns the adapter for the named vendor.
func (r *Registry) Adapter(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// PollingAdapter returns the adapter only if the vendor is poll-mode.
func (r *Registry) PollingAdapter(name string) (PollingAdapter, bool) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, false
	}
	pa, ok := a.(PollingAdapter)
	return pa, ok
}
