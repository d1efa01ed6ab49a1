package db

import (
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNumericRoundTrip(t *testing.T) {
	in := decimal.RequireFromString("28325.4075")
	n := Numeric(in)
	require.True(t, n.Valid)
	require.Equal(t, int32(-4), n.Exp)

	out := Decimal(n)
	require.True(t, in.Equal(out), "got %s", out)
}

func TestDecimalNullIsZero(t *testing.T) {
	require.True(t, Decimal(pgtype.Numeric{}).IsZero())
	require.True(t, Decimal(pgtype.Numeric{NaN: true, Valid: true}).IsZero())
}

func TestDecScanner(t *testing.T) {
	var got decimal.Decimal
	err := Dec(&got).ScanNumeric(pgtype.Numeric{Int: big.NewInt(675000), Exp: -2, Valid: true})
	require.NoError(t, err)
	require.Equal(t, "6750", got.String())

	err = Dec(&got).ScanNumeric(pgtype.Numeric{NaN: true, Valid: true})
	require.Error(t, err)
}

func TestUUIDHelpers(t *testing.T) {
	id, err := UUID("7b0c3f4e-2f6a-4d7e-9a51-0f1c2d3e4f50")
	require.NoError(t, err)
	require.Equal(t, "7b0c3f4e-2f6a-4d7e-9a51-0f1c2d3e4f50", UUIDString(id))
	require.Equal(t, "", UUIDString(pgtype.UUID{}))

	_, err = UUID("nope")
	require.Error(t, err)
}

func TestMigrateURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@localhost:5432/db", MigrateURL("postgres://u:p@localhost:5432/db"))
	require.Equal(t, "pgx5://localhost/db", MigrateURL("postgresql://localhost/db"))
	require.Equal(t, "pgx5://x", MigrateURL("pgx5://x"))
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	require.Len(t, entries, 4)
}
