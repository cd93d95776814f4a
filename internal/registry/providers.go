// Package registry holds the in-memory read-only provider and tool tables,
// loaded once at startup, plus access-checked operations over them.
package registry

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/conduitchat/conduit/internal/domain"
	"github.com/conduitchat/conduit/pkg/llm/provider"
	"github.com/conduitchat/conduit/pkg/llm/provider/anthropic"
	"github.com/conduitchat/conduit/pkg/llm/provider/azure"
	"github.com/conduitchat/conduit/pkg/llm/provider/ollama"
	"github.com/conduitchat/conduit/pkg/llm/provider/openai"
)

// DefaultAdapters builds one adapter per supported backend family. The
// family set is closed; selection happens here, once, not per request.
func DefaultAdapters() map[provider.Family]provider.Adapter {
	return map[provider.Family]provider.Adapter{
		provider.FamilyOpenAI:    openai.New(),
		provider.FamilyAnthropic: anthropic.New(),
		provider.FamilyAzure:     azure.New(),
		provider.FamilyOllama:    ollama.New(),
	}
}

// ProviderRegistry maps provider ids to their definitions and resolved
// adapters. Immutable after construction.
type ProviderRegistry struct {
	providers map[string]domain.Provider
	order     []string
	adapters  map[provider.Family]provider.Adapter
	access    domain.AccessEvaluator
}

// NewProviderRegistry validates the definitions and resolves each entry's
// family to an adapter. An unknown family or duplicate id is a
// configuration error and aborts startup.
func NewProviderRegistry(access domain.AccessEvaluator, adapters map[provider.Family]provider.Adapter, defs []domain.Provider) (*ProviderRegistry, error) {
	r := &ProviderRegistry{
		providers: make(map[string]domain.Provider, len(defs)),
		adapters:  adapters,
		access:    access,
	}

	for _, def := range defs {
		if def.ID == "" {
			return nil, fmt.Errorf("provider definition without id")
		}
		if _, dup := r.providers[def.ID]; dup {
			return nil, fmt.Errorf("duplicate provider id %q", def.ID)
		}
		if _, ok := adapters[def.Family]; !ok {
			return nil, fmt.Errorf("provider %q: unsupported family %q", def.ID, def.Family)
		}
		if def.RequiredGroup == "" {
			def.RequiredGroup = domain.DefaultGroup
		}
		r.providers[def.ID] = def
		r.order = append(r.order, def.ID)
	}

	log.Info().Int("providers", len(r.order)).Msg("loaded provider registry")
	return r, nil
}

// List returns every provider with the caller's effective availability
// folded into the Available flag.
func (r *ProviderRegistry) List(userID string) []domain.ProviderInfo {
	infos := make([]domain.ProviderInfo, 0, len(r.order))
	for _, id := range r.order {
		infos = append(infos, r.describe(r.providers[id], userID))
	}
	return infos
}

// Get returns one provider's listing entry.
func (r *ProviderRegistry) Get(id, userID string) (domain.ProviderInfo, bool) {
	p, ok := r.providers[id]
	if !ok {
		return domain.ProviderInfo{}, false
	}
	return r.describe(p, userID), true
}

func (r *ProviderRegistry) describe(p domain.Provider, userID string) domain.ProviderInfo {
	info := domain.ProviderInfo{Provider: p}
	if !r.access.HasAccess(userID, p.RequiredGroup) {
		info.Available = false
		info.AccessReason = "Requires group: " + p.RequiredGroup
	}
	return info
}

// Validate reports whether the user may use the provider. Availability is
// folded in: an unavailable provider is never accessible. Side-effect-free
// and idempotent.
func (r *ProviderRegistry) Validate(id, userID string) domain.ProviderValidation {
	p, ok := r.providers[id]
	if !ok {
		return domain.ProviderValidation{
			ProviderID: id,
			HasAccess:  false,
			Reason:     "Provider not found",
		}
	}

	if !r.access.HasAccess(userID, p.RequiredGroup) {
		return domain.ProviderValidation{
			ProviderID: id,
			HasAccess:  false,
			Reason:     "Requires group: " + p.RequiredGroup,
		}
	}
	if !p.Available {
		return domain.ProviderValidation{
			ProviderID: id,
			HasAccess:  false,
			Reason:     "Provider unavailable",
		}
	}

	return domain.ProviderValidation{
		ProviderID: id,
		HasAccess:  true,
		Reason:     "Access granted",
	}
}

// Adapter resolves the provider's definition and its family adapter.
func (r *ProviderRegistry) Adapter(id string) (provider.Adapter, domain.Provider, error) {
	p, ok := r.providers[id]
	if !ok {
		return nil, domain.Provider{}, fmt.Errorf("provider %q not found", id)
	}
	return r.adapters[p.Family], p, nil
}
