package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dropDatabas3/socialgate/internal/domain/repository"
	"github.com/dropDatabas3/socialgate/internal/domain/types"
)

// DB es el subconjunto de *pgxpool.Pool que usa el repositorio.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// querier es lo común entre el pool y una pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolation = "23505"

// nullIfEmpty returns nil if the string is empty, otherwise returns the string pointer.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Repo implementa repository.FederatedUserRepository.
type Repo struct {
	db DB
}

var _ repository.FederatedUserRepository = (*Repo)(nil)

// NewRepo crea el repositorio sobre un pool (o un mock).
func NewRepo(db DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) GetBySubject(ctx context.Context, subjectID string) (*types.FederatedUser, error) {
	return getBySubject(ctx, r.db, subjectID)
}

func (r *Repo) DeleteBySubject(ctx context.Context, subjectID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM federated_users WHERE subject_id = $1`, subjectID)
	if err != nil {
		return fmt.Errorf("delete federated user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// InTx abre una transacción, ejecuta fn y hace commit solo si fn no falla.
func (r *Repo) InTx(ctx context.Context, fn func(tx repository.FederatedUserTx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	if err := fn(&txRepo{q: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type txRepo struct {
	q querier
}

func (t *txRepo) GetBySubject(ctx context.Context, subjectID string) (*types.FederatedUser, error) {
	return getBySubject(ctx, t.q, subjectID)
}

func (t *txRepo) Create(ctx context.Context, u *types.FederatedUser) error {
	const query = `
		INSERT INTO federated_users
			(subject_id, directory_username, provider, external_user_id, email, display_name, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (subject_id) DO NOTHING
		RETURNING id
	`
	err := t.q.QueryRow(ctx, query,
		u.SubjectID, u.DirectoryUsername, string(u.Provider), u.ExternalUserID,
		nullIfEmpty(u.Email), u.DisplayName, nullIfEmpty(u.AvatarURL),
		u.CreatedAt, u.UpdatedAt,
	).Scan(&u.ID)
	if err != nil {
		// Sin fila: el sujeto ya existe y la transacción sigue utilizable.
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: subject %s", repository.ErrConflict, u.SubjectID)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: subject %s", repository.ErrConflict, u.SubjectID)
		}
		return fmt.Errorf("insert federated user: %w", err)
	}
	return nil
}

func (t *txRepo) Update(ctx context.Context, u *types.FederatedUser) error {
	const query = `
		UPDATE federated_users
		SET email = $2, display_name = $3, avatar_url = $4, updated_at = $5
		WHERE subject_id = $1
	`
	tag, err := t.q.Exec(ctx, query,
		u.SubjectID, nullIfEmpty(u.Email), u.DisplayName, nullIfEmpty(u.AvatarURL), u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update federated user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func getBySubject(ctx context.Context, q querier, subjectID string) (*types.FederatedUser, error) {
	const query = `
		SELECT id, subject_id, directory_username, provider, external_user_id,
		       email, display_name, avatar_url, created_at, updated_at
		FROM federated_users
		WHERE subject_id = $1
	`
	var (
		u         types.FederatedUser
		provider  string
		email     *string
		avatarURL *string
		createdAt time.Time
		updatedAt time.Time
	)
	err := q.QueryRow(ctx, query, subjectID).Scan(
		&u.ID, &u.SubjectID, &u.DirectoryUsername, &provider, &u.ExternalUserID,
		&email, &u.DisplayName, &avatarURL, &createdAt, &updatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get federated user: %w", err)
	}
	u.Provider = types.Provider(provider)
	u.Email = deref(email)
	u.AvatarURL = deref(avatarURL)
	u.CreatedAt = createdAt
	u.UpdatedAt = updatedAt
	return &u, nil
}
