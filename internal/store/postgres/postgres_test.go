package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"tindahan/backend/internal/store"
)

func TestTranslateTxErrorMapsSerializationAborts(t *testing.T) {
	serialization := translateTxError(fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"}))
	if !errors.Is(serialization, store.ErrConflict) {
		t.Fatalf("expected conflict for serialization failure, got %v", serialization)
	}

	deadlock := translateTxError(&pgconn.PgError{Code: "40P01"})
	if !errors.Is(deadlock, store.ErrConflict) {
		t.Fatalf("expected conflict for deadlock, got %v", deadlock)
	}
}

func TestTranslateTxErrorPassesOtherErrorsThrough(t *testing.T) {
	if out := translateTxError(nil); out != nil {
		t.Fatalf("expected nil passthrough, got %v", out)
	}

	stock := fmt.Errorf("%w: product itlog", store.ErrInsufficientStock)
	if out := translateTxError(stock); !errors.Is(out, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock preserved, got %v", out)
	}

	unique := translateTxError(&pgconn.PgError{Code: "23505"})
	if errors.Is(unique, store.ErrConflict) {
		t.Fatalf("expected unique violations untouched here, got %v", unique)
	}
}
