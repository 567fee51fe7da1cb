package repository

import (
	"context"

	"github.com/dropDatabas3/socialgate/internal/domain/types"
)

// FederatedUserReader lecturas por subject_id.
type FederatedUserReader interface {
	// GetBySubject busca el usuario por el subject del directorio.
	// Retorna ErrNotFound si no existe.
	GetBySubject(ctx context.Context, subjectID string) (*types.FederatedUser, error)
}

// FederatedUserTx son las operaciones disponibles dentro de una transacción.
type FederatedUserTx interface {
	FederatedUserReader

	// Create inserta el usuario y completa u.ID.
	// Retorna ErrConflict si el subject_id ya existe.
	Create(ctx context.Context, u *types.FederatedUser) error

	// Update persiste email, display_name, avatar_url y updated_at.
	// Retorna ErrNotFound si no existe.
	Update(ctx context.Context, u *types.FederatedUser) error
}

// FederatedUserRepository es el store local de usuarios federados.
type FederatedUserRepository interface {
	FederatedUserReader

	// InTx ejecuta fn en una transacción. Commit si fn retorna nil, rollback en otro caso.
	InTx(ctx context.Context, fn func(tx FederatedUserTx) error) error

	// DeleteBySubject elimina el usuario. Retorna ErrNotFound si no había fila.
	DeleteBySubject(ctx context.Context, subjectID string) error
}
