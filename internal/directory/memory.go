package directory

import (
	"context"
	"crypto/rand"
	"sort"
	"sync"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dropDatabas3/socialgate/internal/domain/types"
)

type memoryAccount struct {
	subject   string
	confirmed bool
	profile   Profile
	groups    map[string]struct{}
}

// Memory is an in-process directory for local development and tests.
// It enforces the same contract as the user pool: duplicate usernames are rejected
// and tokens are only issued to confirmed accounts.
type Memory struct {
	mu       sync.Mutex
	accounts map[string]*memoryAccount
	groups   map[string]struct{}

	key      []byte
	tokenTTL time.Duration
	now      func() time.Time
}

// NewMemory creates an empty directory. Tokens are HS256 JWTs signed with a random
// per-process key.
func NewMemory() *Memory {
	key := make([]byte, 32)
	_, _ = rand.Read(key)
	return &Memory{
		accounts: map[string]*memoryAccount{},
		groups:   map[string]struct{}{},
		key:      key,
		tokenTTL: time.Hour,
		now:      time.Now,
	}
}

func (m *Memory) LookupSubject(_ context.Context, p types.Provider, externalUserID string) (Subject, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[types.DirectoryUsername(p, externalUserID)]
	if !ok {
		return Subject{}, false, nil
	}
	return Subject{ID: a.subject, Confirmed: a.confirmed}, true, nil
}

func (m *Memory) Register(_ context.Context, p types.Provider, externalUserID string, profile Profile) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	username := types.DirectoryUsername(p, externalUserID)
	if _, ok := m.accounts[username]; ok {
		return "", ErrUsernameExists
	}
	a := &memoryAccount{subject: uuid.NewString(), profile: profile, groups: map[string]struct{}{}}
	m.accounts[username] = a
	return a.subject, nil
}

func (m *Memory) ConfirmRegistration(_ context.Context, p types.Provider, externalUserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[types.DirectoryUsername(p, externalUserID)]
	if !ok {
		return ErrUserNotFound
	}
	a.confirmed = true
	return nil
}

func (m *Memory) EnsureGroup(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[name] = struct{}{}
	return nil
}

func (m *Memory) AddUserToGroup(_ context.Context, p types.Provider, externalUserID, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[types.DirectoryUsername(p, externalUserID)]
	if !ok {
		return ErrUserNotFound
	}
	if _, ok := m.groups[group]; !ok {
		return ErrGroupNotFound
	}
	a.groups[group] = struct{}{}
	return nil
}

func (m *Memory) UpdateAttributes(_ context.Context, p types.Provider, externalUserID string, profile Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[types.DirectoryUsername(p, externalUserID)]
	if !ok {
		return ErrUserNotFound
	}
	// empty values are not written, same as the user pool
	if profile.Email != "" {
		a.profile.Email = profile.Email
	}
	if profile.DisplayName != "" {
		a.profile.DisplayName = profile.DisplayName
	}
	if profile.AvatarURL != "" {
		a.profile.AvatarURL = profile.AvatarURL
	}
	return nil
}

func (m *Memory) IssueTokens(_ context.Context, p types.Provider, externalUserID string) (*types.AuthenticationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	username := types.DirectoryUsername(p, externalUserID)
	a, ok := m.accounts[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	if !a.confirmed {
		return nil, ErrUserNotConfirmed
	}

	now := m.now()
	groups := make([]string, 0, len(a.groups))
	for g := range a.groups {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	base := jwtv5.MapClaims{
		"sub":              a.subject,
		"cognito:username": username,
		"iat":              now.Unix(),
		"exp":              now.Add(m.tokenTTL).Unix(),
	}
	idClaims := jwtv5.MapClaims{"token_use": "id", "cognito:groups": groups}
	accessClaims := jwtv5.MapClaims{"token_use": "access"}
	for k, v := range base {
		idClaims[k] = v
		accessClaims[k] = v
	}
	if a.profile.DisplayName != "" {
		idClaims["name"] = a.profile.DisplayName
	}
	if a.profile.AvatarURL != "" {
		idClaims["picture"] = a.profile.AvatarURL
	}
	if a.profile.Email != "" {
		idClaims["email"] = a.profile.Email
	}

	idToken, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, idClaims).SignedString(m.key)
	if err != nil {
		return nil, err
	}
	accessToken, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, accessClaims).SignedString(m.key)
	if err != nil {
		return nil, err
	}
	return &types.AuthenticationResult{
		AccessToken:  accessToken,
		IDToken:      idToken,
		RefreshToken: uuid.NewString(),
		TokenType:    "Bearer",
		ExpiresIn:    int32(m.tokenTTL.Seconds()),
	}, nil
}

func (m *Memory) DeleteUser(_ context.Context, p types.Provider, externalUserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	username := types.DirectoryUsername(p, externalUserID)
	if _, ok := m.accounts[username]; !ok {
		return ErrUserNotFound
	}
	delete(m.accounts, username)
	return nil
}

// Groups returns the user's group names, sorted. Used by tests and the dev console.
func (m *Memory) Groups(p types.Provider, externalUserID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[types.DirectoryUsername(p, externalUserID)]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(a.groups))
	for g := range a.groups {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// HasGroup reports whether the group exists.
func (m *Memory) HasGroup(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.groups[name]
	return ok
}
