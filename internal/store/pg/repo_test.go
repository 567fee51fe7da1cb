package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/socialgate/internal/domain/repository"
	"github.com/dropDatabas3/socialgate/internal/domain/types"
)

var userColumns = []string{
	"id", "subject_id", "directory_username", "provider", "external_user_id",
	"email", "display_name", "avatar_url", "created_at", "updated_at",
}

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Repo) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewRepo(mock)
}

func TestGetBySubject_Found(t *testing.T) {
	mock, repo := newMock(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	email := "kim@example.com"

	mock.ExpectQuery("SELECT id, subject_id").
		WithArgs("sub-abc").
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow(int64(7), "sub-abc", "Kakao_123", "Kakao", "123", &email, "Kim", nil, now, now))

	u, err := repo.GetBySubject(context.Background(), "sub-abc")
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, types.ProviderKakao, u.Provider)
	assert.Equal(t, "kim@example.com", u.Email)
	assert.Equal(t, "", u.AvatarURL)
	assert.Equal(t, now, u.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBySubject_NotFound(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectQuery("SELECT id, subject_id").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(userColumns))

	_, err := repo.GetBySubject(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_CreateCommits(t *testing.T) {
	mock, repo := newMock(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	id := types.CanonicalIdentity{Provider: types.ProviderKakao, ExternalUserID: "123", DisplayName: "Kim"}
	u := types.NewFederatedUser("sub-abc", id, now)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO federated_users").
		WithArgs("sub-abc", "Kakao_123", "Kakao", "123", pgxmock.AnyArg(), "Kim", pgxmock.AnyArg(), now, now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectCommit()

	err := repo.InTx(context.Background(), func(tx repository.FederatedUserTx) error {
		return tx.Create(context.Background(), u)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), u.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_DuplicateSubjectRollsBack(t *testing.T) {
	mock, repo := newMock(t)
	u := types.NewFederatedUser("sub-abc", types.CanonicalIdentity{
		Provider: types.ProviderTwitter, ExternalUserID: "99", DisplayName: "jack",
	}, time.Now())

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO federated_users").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})
	mock.ExpectRollback()

	err := repo.InTx(context.Background(), func(tx repository.FederatedUserTx) error {
		return tx.Create(context.Background(), u)
	})
	assert.ErrorIs(t, err, repository.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_ExistingSubjectKeepsTxUsable(t *testing.T) {
	mock, repo := newMock(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	id := types.CanonicalIdentity{Provider: types.ProviderKakao, ExternalUserID: "123", DisplayName: "Kim Ji"}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO federated_users").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT id, subject_id").
		WithArgs("sub-abc").
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow(int64(7), "sub-abc", "Kakao_123", "Kakao", "123", nil, "Kim", nil, now, now))
	mock.ExpectExec("UPDATE federated_users").
		WithArgs("sub-abc", pgxmock.AnyArg(), "Kim Ji", pgxmock.AnyArg(), later).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := repo.InTx(context.Background(), func(tx repository.FederatedUserTx) error {
		err := tx.Create(context.Background(), types.NewFederatedUser("sub-abc", id, later))
		require.True(t, repository.IsConflict(err))
		u, err := tx.GetBySubject(context.Background(), "sub-abc")
		if err != nil {
			return err
		}
		u.Refresh(id, later)
		return tx.Update(context.Background(), u)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_UpdateMissingRow(t *testing.T) {
	mock, repo := newMock(t)
	u := &types.FederatedUser{SubjectID: "sub-x", DisplayName: "x", UpdatedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE federated_users").
		WithArgs("sub-x", pgxmock.AnyArg(), "x", pgxmock.AnyArg(), u.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.InTx(context.Background(), func(tx repository.FederatedUserTx) error {
		return tx.Update(context.Background(), u)
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_CommitFailure(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	err := repo.InTx(context.Background(), func(tx repository.FederatedUserTx) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBySubject(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectExec("DELETE FROM federated_users").
		WithArgs("sub-abc").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM federated_users").
		WithArgs("sub-abc").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.DeleteBySubject(context.Background(), "sub-abc"))
	assert.ErrorIs(t, repo.DeleteBySubject(context.Background(), "sub-abc"), repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
