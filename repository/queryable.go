package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// queryable is satisfied by both the pool and a transaction
type queryable interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// txBeginner can open transactions
type txBeginner interface {
	queryable
	Begin(ctx context.Context) (pgx.Tx, error)
}

// NUMERIC columns are read as text and parsed so no precision is lost
func parseDecimal(column, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse %s %q: %w", column, raw, err)
	}
	return d, nil
}

func parseNullableDecimal(column string, raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := parseDecimal(column, *raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullableString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
