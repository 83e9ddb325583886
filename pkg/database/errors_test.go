package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/saludbit/impactou-api/pkg/config"
)

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert group: %w", &pq.Error{Code: "23505", Constraint: "groups_invitation_code_key"})

	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsForeignKeyViolation(err))
	assert.Equal(t, "groups_invitation_code_key", ConstraintName(err))
}

func TestIsUniqueViolationIgnoresOtherErrors(t *testing.T) {
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.False(t, IsUniqueViolation(nil))
	assert.True(t, IsForeignKeyViolation(&pq.Error{Code: "23503"}))
	assert.Empty(t, ConstraintName(errors.New("boom")))
}

func TestDSNFromParts(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "impactou", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=impactou sslmode=disable", dsn)
}

func TestDSNPrefersURL(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db/x", DSN(config.DatabaseConfig{URL: "postgres://u:p@db/x", Host: "ignored"}))
}
