package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursehub-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "app", Password: "pw", Name: "coursehub", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=app password=pw dbname=coursehub sslmode=disable", dsn)
}

func TestEmbeddedMigrationsHaveUpAndDown(t *testing.T) {
	entries, err := fs.ReadDir(migrations, migrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		body, err := fs.ReadFile(migrations, migrationsDir+"/"+e.Name())
		require.NoError(t, err)
		assert.Contains(t, string(body), "-- +goose Up", e.Name())
		assert.Contains(t, string(body), "-- +goose Down", e.Name())
	}
}

func TestEnrollmentUniquenessIsEnforcedBySchema(t *testing.T) {
	body, err := fs.ReadFile(migrations, migrationsDir+"/00002_enrollments.sql")
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "UNIQUE (course_id, user_id)"))
}
