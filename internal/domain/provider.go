package domain

import "github.com/conduitchat/conduit/pkg/llm/provider"

// Provider is a model backend entry loaded once from static configuration.
type Provider struct {
	ID            string          `yaml:"id" json:"id"`
	Name          string          `yaml:"name" json:"name"`
	Description   string          `yaml:"description" json:"description"`
	Family        provider.Family `yaml:"provider" json:"provider"`
	Model         string          `yaml:"model_name" json:"model_name"`
	Endpoint      string          `yaml:"model_url" json:"model_url"`
	APIKey        string          `yaml:"api_key" json:"-"`
	RequiredGroup string          `yaml:"required_group" json:"required_group"`
	Available     bool            `yaml:"available" json:"available"`
	MaxTokens     int             `yaml:"max_tokens" json:"max_tokens"`
	Streaming     bool            `yaml:"supports_streaming" json:"supports_streaming"`
}

// WireConfig renders the adapter-facing subset of the provider settings.
func (p Provider) WireConfig() provider.Config {
	return provider.Config{
		Model:     p.Model,
		Endpoint:  p.Endpoint,
		APIKey:    p.APIKey,
		MaxTokens: p.MaxTokens,
	}
}

// ProviderInfo is a listing entry with the caller's effective availability.
type ProviderInfo struct {
	Provider
	AccessReason string `json:"access_reason,omitempty"`
}

// ProviderValidation reports access for one provider id. HasAccess folds in
// the availability flag: an unavailable provider is never accessible.
type ProviderValidation struct {
	ProviderID string `json:"provider_id"`
	HasAccess  bool   `json:"has_access"`
	Reason     string `json:"reason"`
}
