package providers

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
)

var (
	// ErrProviderNotFound is returned when a provider is not registered
	ErrProviderNotFound = errors.New("provider not found")

	// ErrProviderAlreadyRegistered is returned when registering a duplicate provider
	ErrProviderAlreadyRegistered = errors.New("provider already registered")
)

// Registry holds the configured provider adapters and resolves models to
// them via the detection rules. Registries are built once at startup and
// injected where needed; there is no package-level instance.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider adapter under its Name()
func (r *Registry) Register(provider Provider) error {
	if provider == nil {
		return errors.New("provider cannot be nil")
	}

	name := provider.Name()
	if name == "" {
		return errors.New("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return ErrProviderAlreadyRegistered
	}
	r.providers[name] = provider

	return nil
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}

	return provider, nil
}

// Resolve maps a model name to a registered provider adapter. Failures are
// ProviderErrors so callers translate them to HTTP statuses uniformly: an
// unrecognized model maps to model_not_found and a recognized model whose
// provider has no adapter configured maps to unavailable.
func (r *Registry) Resolve(model string) (Provider, error) {
	name := Detect(model)
	if name == ProviderUnknown {
		return nil, NewProviderError(name, CodeModelNotFound,
			fmt.Sprintf("no provider recognizes model %q", model),
			http.StatusNotFound, false, nil)
	}

	r.mu.RLock()
	provider, exists := r.providers[name]
	r.mu.RUnlock()

	if !exists {
		return nil, NewProviderError(name, CodeUnavailable,
			fmt.Sprintf("provider %q is not configured for model %q", name, model),
			http.StatusBadGateway, false, nil)
	}

	return provider, nil
}

// Names returns the registered provider names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Count returns the number of registered providers
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.providers)
}

// ListModels returns the catalog models of every registered provider,
// sorted for stable API output
func (r *Registry) ListModels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var models []string
	for _, provider := range r.providers {
		models = append(models, provider.ListModels()...)
	}
	sort.Strings(models)

	return models
}

// ModelInfos returns catalog info for every model of every registered
// provider, sorted by provider then model ID
func (r *Registry) ModelInfos() []ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var infos []ModelInfo
	for _, provider := range r.providers {
		for _, model := range provider.ListModels() {
			info, err := provider.GetModelInfo(model)
			if err != nil {
				continue
			}
			infos = append(infos, info)
		}
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Provider != infos[j].Provider {
			return infos[i].Provider < infos[j].Provider
		}
		return infos[i].ID < infos[j].ID
	})

	return infos
}
