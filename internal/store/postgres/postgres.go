package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tindahan/backend/internal/domain"
	"tindahan/backend/internal/store"
	"tindahan/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context, includeInactive bool) ([]domain.Product, error) {
	query := `
		SELECT id, name, COALESCE(barcode,''), category, price_cents, cost_cents,
			stock_qty, min_stock_level, active, created_at, updated_at
		FROM products
	`
	if !includeInactive {
		query += ` WHERE active = true`
	}
	query += ` ORDER BY category, name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Barcode, &p.Category, &p.PriceCents, &p.CostCents, &p.StockQty, &p.MinStockLevel, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Category == "" || product.PriceCents < 1 {
		return nil, store.ErrValidation
	}
	if product.CostCents < 0 || product.StockQty < 0 || product.MinStockLevel < 0 {
		return nil, store.ErrValidation
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	product.Active = true
	product.CreatedAt = now
	product.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, barcode, category, price_cents, cost_cents, stock_qty, min_stock_level, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, product.ID, product.Name, nullIfEmpty(product.Barcode), product.Category, product.PriceCents, product.CostCents, product.StockQty, product.MinStockLevel, product.Active, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: barcode already in use", store.ErrConflict)
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.findProduct(ctx, "id", id)
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	return s.findProduct(ctx, "barcode", barcode)
}

func (s *Store) findProduct(ctx context.Context, column string, value string) (*domain.Product, error) {
	if column != "id" && column != "barcode" {
		return nil, fmt.Errorf("unsupported lookup column")
	}

	var p domain.Product
	query := fmt.Sprintf(`
		SELECT id, name, COALESCE(barcode,''), category, price_cents, cost_cents,
			stock_qty, min_stock_level, active, created_at, updated_at
		FROM products
		WHERE %s = $1
	`, column)
	err := s.db.QueryRowContext(ctx, query, value).Scan(&p.ID, &p.Name, &p.Barcode, &p.Category, &p.PriceCents, &p.CostCents, &p.StockQty, &p.MinStockLevel, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.Category == "" || product.PriceCents < 1 {
		return nil, store.ErrValidation
	}
	if product.CostCents < 0 || product.MinStockLevel < 0 {
		return nil, store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, barcode = $3, category = $4, price_cents = $5, cost_cents = $6,
			min_stock_level = $7, active = $8, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Name, nullIfEmpty(product.Barcode), product.Category, product.PriceCents, product.CostCents, product.MinStockLevel, product.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: barcode already in use", store.ErrConflict)
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetProduct(ctx, product.ID)
}

// AdjustStock applies one manual stock mutation and writes its audit row in
// the same transaction. subtract below zero rejects the whole operation.
func (s *Store) AdjustStock(ctx context.Context, adj domain.InventoryAdjustment) (*domain.Product, error) {
	product, err := s.adjustStock(ctx, adj)
	if err != nil {
		return nil, translateTxError(err)
	}
	return product, nil
}

func (s *Store) adjustStock(ctx context.Context, adj domain.InventoryAdjustment) (*domain.Product, error) {
	if adj.ProductID == "" || adj.Qty < 0 {
		return nil, store.ErrValidation
	}
	switch adj.Type {
	case domain.AdjustAdd, domain.AdjustSubtract:
		if adj.Qty < 1 {
			return nil, store.ErrValidation
		}
	case domain.AdjustSet:
	default:
		return nil, store.ErrValidation
	}
	if adj.ID == "" {
		adj.ID = xid.New("adj")
	}
	if adj.CreatedAt.IsZero() {
		adj.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var current int
	var name string
	err = tx.QueryRowContext(ctx, `
		SELECT stock_qty, name
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, adj.ProductID).Scan(&current, &name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	next := current
	switch adj.Type {
	case domain.AdjustAdd:
		next = current + adj.Qty
	case domain.AdjustSubtract:
		next = current - adj.Qty
		if next < 0 {
			return nil, fmt.Errorf("%w: product %s has %d on hand", store.ErrInsufficientStock, name, current)
		}
	case domain.AdjustSet:
		next = adj.Qty
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE products
		SET stock_qty = $2, updated_at = now()
		WHERE id = $1
	`, adj.ProductID, next)
	if err != nil {
		return nil, err
	}

	if err := insertAdjustment(ctx, tx, adj); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetProduct(ctx, adj.ProductID)
}

func (s *Store) ListInventoryAdjustments(ctx context.Context, productID string, limit int) ([]domain.InventoryAdjustment, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, type, qty, reason, COALESCE(performed_by,''), COALESCE(sale_id,''), created_at
		FROM inventory_adjustments
		WHERE ($1 = '' OR product_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	adjustments := make([]domain.InventoryAdjustment, 0, limit)
	for rows.Next() {
		var adj domain.InventoryAdjustment
		if err := rows.Scan(&adj.ID, &adj.ProductID, &adj.Type, &adj.Qty, &adj.Reason, &adj.PerformedBy, &adj.SaleID, &adj.CreatedAt); err != nil {
			return nil, err
		}
		adj.CreatedAt = adj.CreatedAt.UTC()
		adjustments = append(adjustments, adj)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return adjustments, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Name == "" {
		return nil, store.ErrValidation
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	customer.BalanceCents = 0

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, address, balance_cents, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, customer.ID, customer.Name, customer.Phone, customer.Address, customer.BalanceCents, customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := customer
	return &created, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(phone,''), COALESCE(address,''), balance_cents, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.BalanceCents, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(phone,''), COALESCE(address,''), balance_cents, created_at
		FROM customers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.BalanceCents, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

// PostCreditTransaction appends one ledger row and moves the cached balance by
// the signed amount in a single transaction.
func (s *Store) PostCreditTransaction(ctx context.Context, entry domain.CreditTransaction) (*domain.Customer, error) {
	customer, err := s.postCreditTransaction(ctx, entry)
	if err != nil {
		return nil, translateTxError(err)
	}
	return customer, nil
}

func (s *Store) postCreditTransaction(ctx context.Context, entry domain.CreditTransaction) (*domain.Customer, error) {
	if entry.CustomerID == "" || entry.AmountCents < 1 {
		return nil, store.ErrValidation
	}
	delta, err := balanceDelta(entry.Type, entry.AmountCents)
	if err != nil {
		return nil, err
	}
	if entry.ID == "" {
		entry.ID = xid.New("ct")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	customer, err := postCreditEntry(ctx, tx, entry, delta)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *Store) ListCreditTransactions(ctx context.Context, customerID string, limit int) ([]domain.CreditTransaction, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, type, amount_cents, COALESCE(description,''), COALESCE(sale_id,''), created_at
		FROM credit_transactions
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.CreditTransaction, 0, limit)
	for rows.Next() {
		var entry domain.CreditTransaction
		if err := rows.Scan(&entry.ID, &entry.CustomerID, &entry.Type, &entry.AmountCents, &entry.Description, &entry.SaleID, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// CreateSale runs the whole sale as one serializable transaction: price the
// cart against locked product rows, decrement stock per line, write the sale,
// its items and audit rows, and post the credit-ledger debit for
// credit/partial payments. Any failure rolls everything back.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	created, err := s.createSale(ctx, sale)
	if err != nil {
		return nil, translateTxError(err)
	}
	return created, nil
}

func (s *Store) createSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.ErrValidation
	}
	if sale.DiscountCents < 0 || sale.AmountReceivedCents < 0 {
		return nil, store.ErrValidation
	}
	switch sale.PaymentMethod {
	case domain.PaymentCash, domain.PaymentGCash:
	case domain.PaymentCredit, domain.PaymentPartial:
		if sale.CustomerID == "" {
			return nil, store.ErrCustomerRequired
		}
	default:
		return nil, store.ErrValidation
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.SaleNumber == "" {
		sale.SaleNumber = xid.New("SN")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	ids := make([]string, 0, len(sale.Items))
	for _, item := range sale.Items {
		if item.ProductID == "" || item.Qty < 1 {
			return nil, store.ErrValidation
		}
		ids = append(ids, item.ProductID)
	}

	type productState struct {
		name       string
		priceCents int64
		stockQty   int
	}
	productRows, err := tx.QueryContext(ctx, `
		SELECT id, name, price_cents, stock_qty
		FROM products
		WHERE active = true AND id = ANY($1)
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	productMap := make(map[string]productState, len(ids))
	for productRows.Next() {
		var id string
		var p productState
		if err := productRows.Scan(&id, &p.name, &p.priceCents, &p.stockQty); err != nil {
			_ = productRows.Close()
			return nil, err
		}
		productMap[id] = p
	}
	if err := productRows.Err(); err != nil {
		_ = productRows.Close()
		return nil, err
	}
	_ = productRows.Close()

	totalCents := int64(0)
	pricedItems := make([]domain.SaleItem, 0, len(sale.Items))
	for _, item := range sale.Items {
		product, exists := productMap[item.ProductID]
		if !exists {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, item.ProductID)
		}
		if product.stockQty < item.Qty {
			return nil, fmt.Errorf("%w: product %s has %d on hand, %d requested", store.ErrInsufficientStock, product.name, product.stockQty, item.Qty)
		}

		// productMap tracks what earlier lines of this cart already took, and
		// the guard on the UPDATE keeps the row from ever going negative.
		res, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock_qty = stock_qty - $1, updated_at = now()
			WHERE id = $2 AND stock_qty >= $1
		`, item.Qty, item.ProductID)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, fmt.Errorf("%w: product %s has %d on hand, %d requested", store.ErrInsufficientStock, product.name, product.stockQty, item.Qty)
		}
		product.stockQty -= item.Qty
		productMap[item.ProductID] = product

		if err := insertAdjustment(ctx, tx, domain.InventoryAdjustment{
			ID:        xid.New("adj"),
			ProductID: item.ProductID,
			Type:      domain.AdjustSubtract,
			Qty:       item.Qty,
			Reason:    "sale",
			SaleID:    sale.ID,
			CreatedAt: sale.CreatedAt,
		}); err != nil {
			return nil, err
		}

		lineTotal := product.priceCents * int64(item.Qty)
		pricedItems = append(pricedItems, domain.SaleItem{
			ProductID:      item.ProductID,
			Name:           product.name,
			Qty:            item.Qty,
			UnitPriceCents: product.priceCents,
			TotalCents:     lineTotal,
		})
		totalCents += lineTotal
	}

	if sale.DiscountCents > totalCents {
		return nil, store.ErrValidation
	}
	finalCents := totalCents - sale.DiscountCents

	debitCents := int64(0)
	switch sale.PaymentMethod {
	case domain.PaymentCash, domain.PaymentGCash:
		if sale.AmountReceivedCents < finalCents {
			return nil, fmt.Errorf("%w: amount received below total", store.ErrValidation)
		}
		sale.ChangeCents = sale.AmountReceivedCents - finalCents
		sale.RemainingCents = 0
		sale.PaymentStatus = domain.SaleStatusCompleted
	case domain.PaymentCredit:
		sale.AmountReceivedCents = 0
		sale.ChangeCents = 0
		sale.RemainingCents = finalCents
		sale.PaymentStatus = domain.SaleStatusPending
		debitCents = finalCents
	case domain.PaymentPartial:
		if sale.AmountReceivedCents < 1 || sale.AmountReceivedCents >= finalCents {
			return nil, fmt.Errorf("%w: partial payment must be below the total, use cash or gcash instead", store.ErrValidation)
		}
		sale.ChangeCents = 0
		sale.RemainingCents = finalCents - sale.AmountReceivedCents
		sale.PaymentStatus = domain.SaleStatusPending
		debitCents = sale.RemainingCents
	}

	sale.TotalCents = totalCents
	sale.FinalCents = finalCents
	sale.Items = pricedItems

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, sale_number, customer_id, total_cents, discount_cents, final_cents,
			payment_method, payment_status, amount_received_cents, change_cents,
			remaining_cents, void_reason, voided_at, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, sale.ID, sale.SaleNumber, nullIfEmpty(sale.CustomerID), sale.TotalCents, sale.DiscountCents,
		sale.FinalCents, sale.PaymentMethod, sale.PaymentStatus, sale.AmountReceivedCents,
		sale.ChangeCents, sale.RemainingCents, nullIfEmpty(sale.VoidReason), nullTime(sale.VoidedAt), sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: duplicate sale number", store.ErrConflict)
		}
		return nil, err
	}

	for _, item := range sale.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, name, qty, unit_price_cents, total_cents)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, sale.ID, item.ProductID, item.Name, item.Qty, item.UnitPriceCents, item.TotalCents)
		if err != nil {
			return nil, err
		}
	}

	if debitCents > 0 {
		_, err := postCreditEntry(ctx, tx, domain.CreditTransaction{
			ID:          xid.New("ct"),
			CustomerID:  sale.CustomerID,
			Type:        domain.CreditEntryDebit,
			AmountCents: debitCents,
			Description: "sale " + sale.SaleNumber,
			SaleID:      sale.ID,
			CreatedAt:   sale.CreatedAt,
		}, debitCents)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &sale, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	var sale domain.Sale
	var customerID sql.NullString
	var voidReason sql.NullString
	var voidedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, sale_number, customer_id, total_cents, discount_cents, final_cents,
			payment_method, payment_status, amount_received_cents, change_cents,
			remaining_cents, void_reason, voided_at, created_at
		FROM sales
		WHERE id = $1
	`, id).Scan(
		&sale.ID,
		&sale.SaleNumber,
		&customerID,
		&sale.TotalCents,
		&sale.DiscountCents,
		&sale.FinalCents,
		&sale.PaymentMethod,
		&sale.PaymentStatus,
		&sale.AmountReceivedCents,
		&sale.ChangeCents,
		&sale.RemainingCents,
		&voidReason,
		&voidedAt,
		&sale.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if customerID.Valid {
		sale.CustomerID = customerID.String
	}
	if voidReason.Valid {
		sale.VoidReason = voidReason.String
	}
	if voidedAt.Valid {
		at := voidedAt.Time.UTC()
		sale.VoidedAt = &at
	}
	sale.CreatedAt = sale.CreatedAt.UTC()

	items, err := s.saleItems(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	sale.Items = items

	return &sale, nil
}

func (s *Store) saleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, name, qty, unit_price_cents, total_cents
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id ASC
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0, 8)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Qty, &item.UnitPriceCents, &item.TotalCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListSales(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sales := make([]domain.Sale, 0, len(ids))
	for _, id := range ids {
		sale, err := s.GetSale(ctx, id)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	return sales, nil
}

// VoidSale restocks every line, marks the sale voided, and posts a
// compensating credit-ledger payment for any debit the sale created, all in
// one transaction. Only a non-voided sale can be voided.
func (s *Store) VoidSale(ctx context.Context, id string, reason string, at time.Time) (*domain.Sale, error) {
	sale, err := s.voidSale(ctx, id, reason, at)
	if err != nil {
		return nil, translateTxError(err)
	}
	return sale, nil
}

func (s *Store) voidSale(ctx context.Context, id string, reason string, at time.Time) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	var paymentMethod string
	var customerID sql.NullString
	var finalCents int64
	var remainingCents int64
	var saleNumber string
	err = tx.QueryRowContext(ctx, `
		SELECT sale_number, payment_status, payment_method, customer_id, final_cents, remaining_cents
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&saleNumber, &status, &paymentMethod, &customerID, &finalCents, &remainingCents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if status == domain.SaleStatusVoided {
		return nil, fmt.Errorf("%w: sale already voided", store.ErrValidation)
	}

	itemRows, err := tx.QueryContext(ctx, `
		SELECT product_id, qty
		FROM sale_items
		WHERE sale_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	type line struct {
		productID string
		qty       int
	}
	lines := make([]line, 0, 8)
	for itemRows.Next() {
		var l line
		if err := itemRows.Scan(&l.productID, &l.qty); err != nil {
			_ = itemRows.Close()
			return nil, err
		}
		lines = append(lines, l)
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return nil, err
	}
	_ = itemRows.Close()

	for _, l := range lines {
		_, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock_qty = stock_qty + $1, updated_at = now()
			WHERE id = $2
		`, l.qty, l.productID)
		if err != nil {
			return nil, err
		}
		if err := insertAdjustment(ctx, tx, domain.InventoryAdjustment{
			ID:        xid.New("adj"),
			ProductID: l.productID,
			Type:      domain.AdjustAdd,
			Qty:       l.qty,
			Reason:    "void restock",
			SaleID:    id,
			CreatedAt: at,
		}); err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sales
		SET payment_status = $2, void_reason = $3, voided_at = $4
		WHERE id = $1
	`, id, domain.SaleStatusVoided, reason, at)
	if err != nil {
		return nil, err
	}

	// Reverse the debit the sale posted so the customer balance returns to
	// its pre-sale value.
	reversal := int64(0)
	switch paymentMethod {
	case domain.PaymentCredit:
		reversal = finalCents
	case domain.PaymentPartial:
		reversal = remainingCents
	}
	if reversal > 0 && customerID.Valid && customerID.String != "" {
		_, err := postCreditEntry(ctx, tx, domain.CreditTransaction{
			ID:          xid.New("ct"),
			CustomerID:  customerID.String,
			Type:        domain.CreditEntryPayment,
			AmountCents: reversal,
			Description: "void sale " + saleNumber,
			SaleID:      id,
			CreatedAt:   at,
		}, -reversal)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetSale(ctx, id)
}

func (s *Store) GetDailyReport(ctx context.Context, from time.Time, to time.Time) (domain.DailyReport, error) {
	report := domain.DailyReport{
		ByPayment: make([]domain.DailyReportPayment, 0, 4),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*)::bigint,
			COALESCE(SUM(total_cents),0)::bigint,
			COALESCE(SUM(discount_cents),0)::bigint,
			COALESCE(SUM(final_cents),0)::bigint,
			COALESCE(SUM(CASE WHEN payment_status = $4 THEN remaining_cents ELSE 0 END),0)::bigint
		FROM sales
		WHERE created_at >= $1
			AND created_at < $2
			AND payment_status <> $3
	`, from, to, domain.SaleStatusVoided, domain.SaleStatusPending).Scan(
		&report.Sales,
		&report.GrossSalesCents,
		&report.DiscountCents,
		&report.NetSalesCents,
		&report.CreditOutstandingCents,
	)
	if err != nil {
		return report, err
	}

	paymentRows, err := s.db.QueryContext(ctx, `
		SELECT payment_method, COUNT(*)::bigint, COALESCE(SUM(final_cents),0)::bigint
		FROM sales
		WHERE created_at >= $1
			AND created_at < $2
			AND payment_status <> $3
		GROUP BY payment_method
		ORDER BY payment_method
	`, from, to, domain.SaleStatusVoided)
	if err != nil {
		return report, err
	}
	defer paymentRows.Close()

	for paymentRows.Next() {
		var row domain.DailyReportPayment
		if err := paymentRows.Scan(&row.PaymentMethod, &row.Sales, &row.TotalCents); err != nil {
			return report, err
		}
		report.ByPayment = append(report.ByPayment, row)
	}
	if err := paymentRows.Err(); err != nil {
		return report, err
	}

	return report, nil
}

func (s *Store) ListLowStock(ctx context.Context) ([]domain.LowStockItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, stock_qty, min_stock_level
		FROM products
		WHERE active = true AND stock_qty <= min_stock_level
		ORDER BY stock_qty ASC, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.LowStockItem, 0, 24)
	for rows.Next() {
		var item domain.LowStockItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Category, &item.StockQty, &item.MinStockLevel); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor, role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.Actor, entry.Role, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor, role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.Actor, &entry.Role, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrValidation
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password = $2
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertAdjustment(ctx context.Context, tx execer, adj domain.InventoryAdjustment) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO inventory_adjustments (id, product_id, type, qty, reason, performed_by, sale_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, adj.ID, adj.ProductID, adj.Type, adj.Qty, adj.Reason, nullIfEmpty(adj.PerformedBy), nullIfEmpty(adj.SaleID), adj.CreatedAt)
	return err
}

// postCreditEntry appends a ledger row and moves the customer balance inside
// the caller's transaction. The customer row is locked first so concurrent
// postings serialize.
func postCreditEntry(ctx context.Context, tx execer, entry domain.CreditTransaction, delta int64) (*domain.Customer, error) {
	var customer domain.Customer
	err := tx.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(phone,''), COALESCE(address,''), balance_cents, created_at
		FROM customers
		WHERE id = $1
		FOR UPDATE
	`, entry.CustomerID).Scan(&customer.ID, &customer.Name, &customer.Phone, &customer.Address, &customer.BalanceCents, &customer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, entry.CustomerID)
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO credit_transactions (id, customer_id, type, amount_cents, description, sale_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, entry.CustomerID, entry.Type, entry.AmountCents, entry.Description, nullIfEmpty(entry.SaleID), entry.CreatedAt)
	if err != nil {
		return nil, err
	}

	customer.BalanceCents += delta
	_, err = tx.ExecContext(ctx, `
		UPDATE customers
		SET balance_cents = $2
		WHERE id = $1
	`, entry.CustomerID, customer.BalanceCents)
	if err != nil {
		return nil, err
	}

	customer.CreatedAt = customer.CreatedAt.UTC()
	return &customer, nil
}

func balanceDelta(entryType string, amountCents int64) (int64, error) {
	switch entryType {
	case domain.CreditEntryCredit, domain.CreditEntryDebit:
		return amountCents, nil
	case domain.CreditEntryPayment:
		return -amountCents, nil
	default:
		return 0, store.ErrValidation
	}
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return *value
}

// translateTxError maps serialization aborts and deadlocks to ErrConflict so
// the losing side of two concurrent transactions surfaces as a retryable
// conflict instead of a raw driver error.
func translateTxError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return fmt.Errorf("%w: concurrent update, retry the operation", store.ErrConflict)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
