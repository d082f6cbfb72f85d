package shopify

import (
	"context"

	"github.com/shopcarbon12-gif/carbon-gen-sub002/internal/domain"
)

// StaticCredentialSource serves tokens from configuration: a per-store
// token when one is configured, else the global token.
type StaticCredentialSource struct {
	global   string
	perStore map[string]string
}

// NewStaticCredentialSource creates a config-backed credential source
func NewStaticCredentialSource(global string, perStore map[string]string) *StaticCredentialSource {
	tokens := make(map[string]string, len(perStore))
	for store, token := range perStore {
		if s := domain.CleanStore(store); s != "" && token != "" {
			tokens[s] = token
		}
	}
	return &StaticCredentialSource{global: global, perStore: tokens}
}

// Name identifies this source in logs
func (s *StaticCredentialSource) Name() string {
	return "config"
}

// Token returns the configured token for store
func (s *StaticCredentialSource) Token(_ context.Context, store string) (string, error) {
	if token, ok := s.perStore[domain.CleanStore(store)]; ok {
		return token, nil
	}
	return s.global, nil
}
