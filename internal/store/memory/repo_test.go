package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/socialgate/internal/domain/repository"
	"github.com/dropDatabas3/socialgate/internal/domain/types"
)

func kakaoUser(subject string) *types.FederatedUser {
	return types.NewFederatedUser(subject, types.CanonicalIdentity{
		Provider: types.ProviderKakao, ExternalUserID: "123", DisplayName: "Kim",
	}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestRepo_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	r := NewRepo()
	u := kakaoUser("sub-1")

	require.NoError(t, r.InTx(ctx, func(tx repository.FederatedUserTx) error {
		return tx.Create(ctx, u)
	}))
	assert.Equal(t, int64(1), u.ID)

	got, err := r.GetBySubject(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "Kakao_123", got.DirectoryUsername)
}

func TestRepo_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	r := NewRepo()
	boom := errors.New("boom")

	err := r.InTx(ctx, func(tx repository.FederatedUserTx) error {
		require.NoError(t, tx.Create(ctx, kakaoUser("sub-1")))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, r.Len())

	_, err = r.GetBySubject(ctx, "sub-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRepo_DuplicateSubject(t *testing.T) {
	ctx := context.Background()
	r := NewRepo()
	require.NoError(t, r.InTx(ctx, func(tx repository.FederatedUserTx) error {
		return tx.Create(ctx, kakaoUser("sub-1"))
	}))

	err := r.InTx(ctx, func(tx repository.FederatedUserTx) error {
		return tx.Create(ctx, kakaoUser("sub-1"))
	})
	assert.True(t, repository.IsConflict(err))
	assert.Equal(t, 1, r.Len())
}

func TestRepo_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	r := NewRepo()
	u := kakaoUser("sub-1")
	require.NoError(t, r.InTx(ctx, func(tx repository.FederatedUserTx) error {
		return tx.Create(ctx, u)
	}))

	later := u.CreatedAt.Add(time.Hour)
	require.NoError(t, r.InTx(ctx, func(tx repository.FederatedUserTx) error {
		cur, err := tx.GetBySubject(ctx, "sub-1")
		if err != nil {
			return err
		}
		cur.Refresh(types.CanonicalIdentity{DisplayName: "Kim2", Email: "kim@example.com"}, later)
		return tx.Update(ctx, cur)
	}))

	got, err := r.GetBySubject(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "Kim2", got.DisplayName)
	assert.Equal(t, "kim@example.com", got.Email)
	assert.Equal(t, later, got.UpdatedAt)
	assert.Equal(t, u.CreatedAt, got.CreatedAt)

	require.NoError(t, r.DeleteBySubject(ctx, "sub-1"))
	assert.ErrorIs(t, r.DeleteBySubject(ctx, "sub-1"), repository.ErrNotFound)
}
