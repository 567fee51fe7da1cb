// Package memory implementa el repositorio de usuarios federados en memoria.
// Se usa en desarrollo local (storage.driver: memory) y en tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dropDatabas3/socialgate/internal/domain/repository"
	"github.com/dropDatabas3/socialgate/internal/domain/types"
)

// Repo guarda usuarios por subject_id. InTx trabaja sobre una copia y la publica
// solo si fn no falla.
type Repo struct {
	mu     sync.Mutex
	rows   map[string]types.FederatedUser
	nextID int64
}

var _ repository.FederatedUserRepository = (*Repo)(nil)

func NewRepo() *Repo {
	return &Repo{rows: make(map[string]types.FederatedUser)}
}

func (r *Repo) GetBySubject(_ context.Context, subjectID string) (*types.FederatedUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[subjectID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *Repo) DeleteBySubject(_ context.Context, subjectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[subjectID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.rows, subjectID)
	return nil
}

// InTx serializa transacciones con el mutex del repo.
func (r *Repo) InTx(ctx context.Context, fn func(tx repository.FederatedUserTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &memTx{rows: make(map[string]types.FederatedUser, len(r.rows)), nextID: r.nextID}
	for k, v := range r.rows {
		tx.rows[k] = v
	}
	if err := fn(tx); err != nil {
		return err
	}
	r.rows = tx.rows
	r.nextID = tx.nextID
	return nil
}

// Len retorna la cantidad de filas.
func (r *Repo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type memTx struct {
	rows   map[string]types.FederatedUser
	nextID int64
}

func (t *memTx) GetBySubject(_ context.Context, subjectID string) (*types.FederatedUser, error) {
	u, ok := t.rows[subjectID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (t *memTx) Create(_ context.Context, u *types.FederatedUser) error {
	if u.SubjectID == "" {
		return fmt.Errorf("%w: empty subject", repository.ErrInvalidInput)
	}
	if _, ok := t.rows[u.SubjectID]; ok {
		return fmt.Errorf("%w: subject %s", repository.ErrConflict, u.SubjectID)
	}
	t.nextID++
	u.ID = t.nextID
	t.rows[u.SubjectID] = *u
	return nil
}

func (t *memTx) Update(_ context.Context, u *types.FederatedUser) error {
	cur, ok := t.rows[u.SubjectID]
	if !ok {
		return repository.ErrNotFound
	}
	cur.Email = u.Email
	cur.DisplayName = u.DisplayName
	cur.AvatarURL = u.AvatarURL
	cur.UpdatedAt = u.UpdatedAt
	t.rows[u.SubjectID] = cur
	return nil
}
