// Package normalize maps each OAuth provider's raw profile response onto a
// types.CanonicalIdentity.
//
// Design:
//   - Strategy: one Normalizer per provider.
//   - Registry: dispatch by provider; unknown providers fail with ErrUnsupportedProvider.
//   - Provider quirks (secondary profile fetches) live inside the provider's Normalizer.
package normalize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/dropDatabas3/socialgate/internal/domain/types"
)

var (
	// ErrUnsupportedProvider indicates the provider is not a known enum value or has no normalizer.
	ErrUnsupportedProvider = errors.New("normalize: unsupported provider")

	// ErrMalformedResponse indicates required fields (external id, display name) could not be extracted.
	ErrMalformedResponse = errors.New("normalize: malformed provider response")
)

// RawResponse is the authorization-result payload handed over by the OAuth boundary.
type RawResponse map[string]any

// Normalizer converts one provider's payload.
type Normalizer interface {
	Provider() types.Provider
	Normalize(ctx context.Context, raw RawResponse) (types.CanonicalIdentity, error)
}

// Registry dispatches to the normalizer registered for a provider.
type Registry struct {
	mu          sync.RWMutex
	normalizers map[types.Provider]Normalizer
}

// NewRegistry creates a registry with the given normalizers.
func NewRegistry(ns ...Normalizer) *Registry {
	r := &Registry{normalizers: make(map[types.Provider]Normalizer, len(ns))}
	for _, n := range ns {
		r.Register(n)
	}
	return r
}

// Register adds or replaces the normalizer for n.Provider().
func (r *Registry) Register(n Normalizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.normalizers[n.Provider()] = n
}

// Providers returns the providers with a registered normalizer.
func (r *Registry) Providers() []types.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Provider, 0, len(r.normalizers))
	for _, p := range types.Providers() {
		if _, ok := r.normalizers[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Normalize runs the provider's normalizer and validates the required fields.
func (r *Registry) Normalize(ctx context.Context, p types.Provider, raw RawResponse) (types.CanonicalIdentity, error) {
	if !p.IsValid() {
		return types.CanonicalIdentity{}, fmt.Errorf("%w: %q", ErrUnsupportedProvider, p)
	}
	r.mu.RLock()
	n, ok := r.normalizers[p]
	r.mu.RUnlock()
	if !ok {
		return types.CanonicalIdentity{}, fmt.Errorf("%w: %q not configured", ErrUnsupportedProvider, p)
	}
	if raw == nil {
		return types.CanonicalIdentity{}, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	id, err := n.Normalize(ctx, raw)
	if err != nil {
		return types.CanonicalIdentity{}, err
	}
	id.Provider = p
	if id.ExternalUserID == "" {
		return types.CanonicalIdentity{}, fmt.Errorf("%w: missing external user id", ErrMalformedResponse)
	}
	if id.DisplayName == "" {
		return types.CanonicalIdentity{}, fmt.Errorf("%w: missing display name", ErrMalformedResponse)
	}
	return id, nil
}

// stringField reads a scalar as string. Provider ids arrive as JSON numbers or strings;
// numeric ids must be decoded with UseNumber so they come in as json.Number. A float64
// is rejected: ids above 2^53 would already have lost digits.
func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return ""
}
