package pg

import (
	"context"
	"testing"
	"testing/fstest"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	migrations "github.com/dropDatabas3/socialgate/migrations/postgres"
)

func TestParseMigrations_Embedded(t *testing.T) {
	m := NewMigrator(migrations.FS, migrations.Dir)
	migs, err := m.ParseMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migs)
	assert.Equal(t, 1, migs[0].Version)
	assert.Equal(t, "federated_users", migs[0].Name)
	assert.Contains(t, migs[0].SQL, "federated_users_subject_uq")
}

func TestParseMigrations_SortsAndIgnores(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/0002_second.sql": {Data: []byte("SELECT 2")},
		"sql/0001_first.sql":  {Data: []byte("SELECT 1")},
		"sql/README.md":       {Data: []byte("docs")},
	}
	migs, err := NewMigrator(fsys, "sql").ParseMigrations()
	require.NoError(t, err)
	require.Len(t, migs, 2)
	assert.Equal(t, "first", migs[0].Name)
	assert.Equal(t, "second", migs[1].Name)
}

func TestParseMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/0001_a.sql": {Data: []byte("SELECT 1")},
		"sql/1_b.sql":    {Data: []byte("SELECT 1")},
	}
	_, err := NewMigrator(fsys, "sql").ParseMigrations()
	assert.Error(t, err)
}

func TestRun_AppliesPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	fsys := fstest.MapFS{
		"sql/0001_first.sql":  {Data: []byte("CREATE TABLE first_table (id INT)")},
		"sql/0002_second.sql": {Data: []byte("CREATE TABLE second_table (id INT)")},
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS _migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE second_table").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO _migrations").
		WithArgs(2, "second").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	res, err := NewMigrator(fsys, "sql").Run(context.Background(), mock)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res.Skipped)
	assert.Equal(t, []int{2}, res.Applied)
	require.NoError(t, mock.ExpectationsWereMet())
}
