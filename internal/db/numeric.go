package db

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Numeric converts d into a NUMERIC parameter without losing precision.
func Numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: new(big.Int).Set(d.Coefficient()), Exp: d.Exponent(), Valid: true}
}

// Decimal converts a NUMERIC column into a decimal. NULL and NaN become zero.
func Decimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

// Dec returns a scan target that writes a NUMERIC column into dst.
func Dec(dst *decimal.Decimal) pgtype.NumericScanner {
	return decimalScanner{dst: dst}
}

type decimalScanner struct {
	dst *decimal.Decimal
}

func (s decimalScanner) ScanNumeric(v pgtype.Numeric) error {
	if v.NaN || v.InfinityModifier != pgtype.Finite {
		return fmt.Errorf("numeric value is not finite")
	}
	*s.dst = Decimal(v)
	return nil
}

// UUID parses id into a UUID parameter.
func UUID(id string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return pgtype.UUID{}, err
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}

// UUIDString renders a UUID column, or "" when it is NULL.
func UUIDString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}
