package postgres

import (
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "assignments_event_worker_key"}

	assert.True(t, isUniqueViolation(dup, "assignments_event_worker_key"))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", dup), "assignments_event_worker_key"))
	assert.False(t, isUniqueViolation(dup, "users_pkey"))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503", ConstraintName: "assignments_event_worker_key"}, "assignments_event_worker_key"))
	assert.False(t, isUniqueViolation(nil, "users_pkey"))
}

func TestIsForeignKeyViolation(t *testing.T) {
	missing := &pgconn.PgError{Code: "23503", ConstraintName: "reviews_worker_id_fkey"}

	assert.True(t, isForeignKeyViolation(fmt.Errorf("insert: %w", missing), "reviews_worker_id_fkey"))
	assert.False(t, isForeignKeyViolation(missing, "assignments_job_id_fkey"))
	assert.False(t, isUniqueViolation(missing, "reviews_worker_id_fkey"))
}

func TestNullableTime(t *testing.T) {
	assert.Nil(t, nullableTime(time.Time{}))

	end := time.Date(2026, 9, 12, 23, 0, 0, 0, time.UTC)
	got := nullableTime(end)
	if assert.NotNil(t, got) {
		assert.Equal(t, end, *got)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	assert.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_init.up.sql")
	assert.Contains(t, names, "000001_init.down.sql")
	assert.Contains(t, names, "000002_reviews.up.sql")
	assert.Contains(t, names, "000002_reviews.down.sql")
}
