// Package session guarda las sesiones de navegador y el estado OAuth pendiente
// sobre cache.Client (memoria o Redis).
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/socialgate/internal/cache"
	"github.com/dropDatabas3/socialgate/internal/domain/types"
)

const (
	sessionPrefix = "sess:"
	pendingPrefix = "oauth:"

	// PendingTTL es el tiempo máximo entre /login y el callback.
	PendingTTL = 10 * time.Minute
)

// ErrNotFound indica sesión inexistente, expirada o state desconocido.
var ErrNotFound = errors.New("session: not found")

// Session es lo que el gateway recuerda de un login exitoso.
type Session struct {
	ID             string         `json:"-"`
	SubjectID      string         `json:"subject_id"`
	Provider       types.Provider `json:"provider"`
	ExternalUserID string         `json:"external_user_id"`
	DisplayName    string         `json:"display_name"`
	IDToken        string         `json:"id_token"`
	AccessToken    string         `json:"access_token"`
	RefreshToken   string         `json:"refresh_token,omitempty"`
	TokenType      string         `json:"token_type"`
	ExpiresAt      time.Time      `json:"expires_at"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Pending es el estado de un login OAuth en curso, indexado por el parámetro state.
type Pending struct {
	Provider     types.Provider `json:"provider"`
	CodeVerifier string         `json:"code_verifier,omitempty"`
	// Next es el path local al que volver después del callback.
	Next      string    `json:"next,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persiste sesiones con TTL fijo.
type Store struct {
	c   cache.Client
	ttl time.Duration
	now func() time.Time
}

func NewStore(c cache.Client, ttl time.Duration) *Store {
	return &Store{c: c, ttl: ttl, now: time.Now}
}

// TTL retorna la duración de las sesiones (para el Max-Age de la cookie).
func (s *Store) TTL() time.Duration { return s.ttl }

// Create guarda la sesión con un id nuevo y lo retorna.
func (s *Store) Create(ctx context.Context, sess *Session) (string, error) {
	sess.ID = uuid.NewString()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.now()
	}
	b, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("session: encode: %w", err)
	}
	if err := s.c.Set(ctx, sessionPrefix+sess.ID, b, s.ttl); err != nil {
		return "", fmt.Errorf("session: save: %w", err)
	}
	return sess.ID, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	b, err := s.c.Get(ctx, sessionPrefix+id)
	if cache.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: load: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	sess.ID = id
	return &sess, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.c.Delete(ctx, sessionPrefix+id)
}

// SavePending registra el state de un login en curso.
func (s *Store) SavePending(ctx context.Context, state string, p Pending) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("session: encode pending: %w", err)
	}
	return s.c.Set(ctx, pendingPrefix+state, b, PendingTTL)
}

// TakePending consume el state. Un state sirve una sola vez.
func (s *Store) TakePending(ctx context.Context, state string) (*Pending, error) {
	if state == "" {
		return nil, ErrNotFound
	}
	key := pendingPrefix + state
	b, err := s.c.Get(ctx, key)
	if cache.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: load pending: %w", err)
	}
	_ = s.c.Delete(ctx, key)

	var p Pending
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("session: decode pending: %w", err)
	}
	return &p, nil
}
