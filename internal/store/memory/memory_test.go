package memory

import (
	"context"
	"errors"
	"testing"

	"tindahan/backend/internal/domain"
	"tindahan/backend/internal/store"
)

func TestCreateSaleDuplicateLinesCannotOversell(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	before, err := s.GetProduct(ctx, "prod-itlog-01")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}

	// Two lines for the same product, each within stock on its own but over
	// it combined.
	_, err = s.CreateSale(ctx, domain.Sale{
		PaymentMethod:       domain.PaymentCash,
		AmountReceivedCents: 10000000,
		Items: []domain.SaleItem{
			{ProductID: "prod-itlog-01", Qty: 15},
			{ProductID: "prod-itlog-01", Qty: 15},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	after, err := s.GetProduct(ctx, "prod-itlog-01")
	if err != nil {
		t.Fatalf("get product after failed sale: %v", err)
	}
	if after.StockQty != before.StockQty {
		t.Fatalf("expected stock unchanged at %d, got %d", before.StockQty, after.StockQty)
	}

	adjustments, err := s.ListInventoryAdjustments(ctx, "prod-itlog-01", 10)
	if err != nil {
		t.Fatalf("list adjustments: %v", err)
	}
	if len(adjustments) != 0 {
		t.Fatalf("expected no adjustment rows after failed sale, got %d", len(adjustments))
	}
}

func TestCreateSaleDuplicateLinesDrawDownCumulatively(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	before, err := s.GetProduct(ctx, "prod-itlog-01")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}

	sale, err := s.CreateSale(ctx, domain.Sale{
		PaymentMethod:       domain.PaymentCash,
		AmountReceivedCents: 10000000,
		Items: []domain.SaleItem{
			{ProductID: "prod-itlog-01", Qty: 8},
			{ProductID: "prod-itlog-01", Qty: 8},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if sale.TotalCents != before.PriceCents*16 {
		t.Fatalf("expected total %d, got %d", before.PriceCents*16, sale.TotalCents)
	}

	after, err := s.GetProduct(ctx, "prod-itlog-01")
	if err != nil {
		t.Fatalf("get product after sale: %v", err)
	}
	if after.StockQty != before.StockQty-16 {
		t.Fatalf("expected stock %d, got %d", before.StockQty-16, after.StockQty)
	}
}
