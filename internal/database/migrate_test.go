package database

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@localhost:5432/db?sslmode=disable":   "pgx5://u:p@localhost:5432/db?sslmode=disable",
		"postgresql://u:p@localhost:5432/db?sslmode=disable": "pgx5://u:p@localhost:5432/db?sslmode=disable",
		"pgx5://u:p@localhost/db":                            "pgx5://u:p@localhost/db",
	}
	for in, want := range cases {
		assert.Equal(t, want, migrateURL(in), in)
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationsFS, "migrations/*.down.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}
