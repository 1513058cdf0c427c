package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"tindahan/backend/internal/domain"
	"tindahan/backend/internal/store"
)

func TestCreditSaleAndVoidRoundTrip(t *testing.T) {
	databaseURL := os.Getenv("TINDAHAN_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set TINDAHAN_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prod-sale-it-%d", stamp)
	customerID := fmt.Sprintf("cust-sale-it-%d", stamp)
	saleID := fmt.Sprintf("sale-it-%d", stamp)
	saleNumber := fmt.Sprintf("SN-IT-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM credit_transactions WHERE customer_id = $1`, customerID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory_adjustments WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, customerID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, barcode, category, price_cents, cost_cents, stock_qty, min_stock_level, active, created_at, updated_at)
		VALUES ($1, 'Sale IT Product', null, 'test', 2500, 1800, 10, 2, true, now(), now())
	`, productID); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, address, balance_cents, created_at)
		VALUES ($1, 'Sale IT Customer', '', '', 0, now())
	`, customerID); err != nil {
		t.Fatalf("insert customer: %v", err)
	}

	// Two lines for the same product requesting more than on hand combined
	// must fail without touching the row.
	_, err = s.CreateSale(ctx, domain.Sale{
		ID:            saleID + "-dup",
		SaleNumber:    saleNumber + "-dup",
		CustomerID:    customerID,
		PaymentMethod: domain.PaymentCredit,
		Items: []domain.SaleItem{
			{ProductID: productID, Qty: 6},
			{ProductID: productID, Qty: 6},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock for duplicate lines, got %v", err)
	}
	var stockAfterRejected int
	if err := s.db.QueryRowContext(ctx, `SELECT stock_qty FROM products WHERE id = $1`, productID).Scan(&stockAfterRejected); err != nil {
		t.Fatalf("query stock after rejected sale: %v", err)
	}
	if stockAfterRejected != 10 {
		t.Fatalf("expected stock untouched at 10, got %d", stockAfterRejected)
	}

	created, err := s.CreateSale(ctx, domain.Sale{
		ID:            saleID,
		SaleNumber:    saleNumber,
		CustomerID:    customerID,
		PaymentMethod: domain.PaymentCredit,
		Items: []domain.SaleItem{
			{ProductID: productID, Qty: 3},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if created.FinalCents != 7500 || created.RemainingCents != 7500 {
		t.Fatalf("expected final and remaining 7500, got final=%d remaining=%d", created.FinalCents, created.RemainingCents)
	}
	if created.PaymentStatus != domain.SaleStatusPending {
		t.Fatalf("expected pending, got %s", created.PaymentStatus)
	}

	var stock int
	if err := s.db.QueryRowContext(ctx, `SELECT stock_qty FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if stock != 7 {
		t.Fatalf("expected stock 7 after sale, got %d", stock)
	}

	var balance int64
	if err := s.db.QueryRowContext(ctx, `SELECT balance_cents FROM customers WHERE id = $1`, customerID).Scan(&balance); err != nil {
		t.Fatalf("query balance: %v", err)
	}
	if balance != 7500 {
		t.Fatalf("expected balance 7500 after credit sale, got %d", balance)
	}

	at := time.Now().UTC()
	voided, err := s.VoidSale(ctx, saleID, "integration test void", at)
	if err != nil {
		t.Fatalf("void sale: %v", err)
	}
	if voided.PaymentStatus != domain.SaleStatusVoided {
		t.Fatalf("expected voided, got %s", voided.PaymentStatus)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT stock_qty FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		t.Fatalf("query stock after void: %v", err)
	}
	if stock != 10 {
		t.Fatalf("expected stock restored to 10, got %d", stock)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT balance_cents FROM customers WHERE id = $1`, customerID).Scan(&balance); err != nil {
		t.Fatalf("query balance after void: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected balance back to 0 after void, got %d", balance)
	}

	var ledgerRows int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM credit_transactions WHERE customer_id = $1`, customerID).Scan(&ledgerRows); err != nil {
		t.Fatalf("count ledger rows: %v", err)
	}
	if ledgerRows != 2 {
		t.Fatalf("expected debit and compensating payment rows, got %d", ledgerRows)
	}

	// Second void must fail.
	if _, err := s.VoidSale(ctx, saleID, "again", time.Now().UTC()); err == nil {
		t.Fatalf("expected second void to fail")
	}
}
