package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestConstraintClassification(t *testing.T) {
	unique := fmt.Errorf("insert product: %w", &pgconn.PgError{Code: "23505", ConstraintName: "products_sku_key"})
	fk := &pgconn.PgError{Code: "23503"}

	require.True(t, IsUniqueViolation(unique))
	require.False(t, IsForeignKeyViolation(unique))
	require.True(t, IsForeignKeyViolation(fk))
	require.False(t, IsUniqueViolation(errors.New("unique")))
	require.False(t, IsUniqueViolation(nil))
}
