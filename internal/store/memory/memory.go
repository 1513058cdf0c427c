package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tindahan/backend/internal/domain"
	"tindahan/backend/internal/store"
	"tindahan/backend/internal/xid"
)

// Store is the in-memory repository used by tests and DB-less runs. A single
// mutex makes each operation an atomic unit: mutations validate everything
// they need before touching any map, so a failed call leaves no trace.
type Store struct {
	mu                sync.RWMutex
	products          map[string]domain.Product
	productsByBarcode map[string]string
	customers         map[string]domain.Customer
	creditEntries     []domain.CreditTransaction
	adjustments       []domain.InventoryAdjustment
	salesByID         map[string]*domain.Sale
	saleNumbers       map[string]string
	auditLogs         []domain.AuditLog
	usersByUsername   map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD; if
// unset, hardcoded dev defaults are used with a warning. These credentials
// are never used in production (the backend uses PostgreSQL when
// DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		products:          make(map[string]domain.Product),
		productsByBarcode: make(map[string]string),
		customers:         make(map[string]domain.Customer),
		creditEntries:     make([]domain.CreditTransaction, 0, 128),
		adjustments:       make([]domain.InventoryAdjustment, 0, 128),
		salesByID:         make(map[string]*domain.Sale),
		saleNumbers:       make(map[string]string),
		auditLogs:         make([]domain.AuditLog, 0, 128),
		usersByUsername:   seedUsers(),
	}
}

func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	seed := []domain.Product{
		{ID: "prod-sardinas-01", Name: "Sardinas 155g", Barcode: "4800000000011", Category: "canned", PriceCents: 2500, CostCents: 2000, StockQty: 60, MinStockLevel: 10},
		{ID: "prod-bigas-01", Name: "Bigas 1kg", Category: "grocery", PriceCents: 5500, CostCents: 4800, StockQty: 80, MinStockLevel: 15},
		{ID: "prod-kape-01", Name: "Kape 3-in-1 Sachet", Barcode: "4800000000028", Category: "beverage", PriceCents: 900, CostCents: 650, StockQty: 200, MinStockLevel: 30},
		{ID: "prod-mantika-01", Name: "Mantika 1L", Category: "grocery", PriceCents: 9800, CostCents: 8500, StockQty: 30, MinStockLevel: 8},
		{ID: "prod-asukal-01", Name: "Asukal 1kg", Category: "grocery", PriceCents: 7200, CostCents: 6400, StockQty: 40, MinStockLevel: 10},
		{ID: "prod-sabon-01", Name: "Sabon Panlaba Bar", Barcode: "4800000000035", Category: "household", PriceCents: 1800, CostCents: 1400, StockQty: 50, MinStockLevel: 12},
		{ID: "prod-softdrink-01", Name: "Softdrinks 1.5L", Category: "beverage", PriceCents: 8500, CostCents: 7200, StockQty: 24, MinStockLevel: 6},
		{ID: "prod-itlog-01", Name: "Itlog Dosena", Category: "fresh", PriceCents: 9600, CostCents: 8400, StockQty: 20, MinStockLevel: 5},
	}
	for _, p := range seed {
		p.Active = true
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
		if p.Barcode != "" {
			s.productsByBarcode[p.Barcode] = p.ID
		}
	}

	s.customers["cust-aling-nena"] = domain.Customer{
		ID:        "cust-aling-nena",
		Name:      "Aling Nena",
		Phone:     "09170000001",
		Address:   "Purok 3",
		CreatedAt: now,
	}

	return s
}

func (s *Store) ListProducts(_ context.Context, includeInactive bool) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !includeInactive && !p.Active {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Category == "" || product.PriceCents < 1 {
		return nil, store.ErrValidation
	}
	if product.CostCents < 0 || product.StockQty < 0 || product.MinStockLevel < 0 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Barcode != "" {
		if _, exists := s.productsByBarcode[product.Barcode]; exists {
			return nil, fmt.Errorf("%w: barcode already in use", store.ErrConflict)
		}
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	product.Active = true
	product.CreatedAt = now
	product.UpdatedAt = now

	s.products[product.ID] = product
	if product.Barcode != "" {
		s.productsByBarcode[product.Barcode] = product.ID
	}
	created := product
	return &created, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.productsByBarcode[barcode]
	if !exists {
		return nil, store.ErrNotFound
	}
	product := s.products[id]
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.Category == "" || product.PriceCents < 1 {
		return nil, store.ErrValidation
	}
	if product.CostCents < 0 || product.MinStockLevel < 0 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if product.Barcode != "" {
		if owner, taken := s.productsByBarcode[product.Barcode]; taken && owner != product.ID {
			return nil, fmt.Errorf("%w: barcode already in use", store.ErrConflict)
		}
	}
	if existing.Barcode != "" && existing.Barcode != product.Barcode {
		delete(s.productsByBarcode, existing.Barcode)
	}
	if product.Barcode != "" {
		s.productsByBarcode[product.Barcode] = product.ID
	}

	product.StockQty = existing.StockQty
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) AdjustStock(_ context.Context, adj domain.InventoryAdjustment) (*domain.Product, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[adj.ProductID]
	if !exists {
		return nil, store.ErrNotFound
	}

	next := product.StockQty
	switch adj.Type {
	case domain.AdjustAdd:
		next = product.StockQty + adj.Qty
	case domain.AdjustSubtract:
		next = product.StockQty - adj.Qty
		if next < 0 {
			return nil, fmt.Errorf("%w: product %s has %d on hand", store.ErrInsufficientStock, product.Name, product.StockQty)
		}
	case domain.AdjustSet:
		next = adj.Qty
	}

	if adj.ID == "" {
		adj.ID = xid.New("adj")
	}
	if adj.CreatedAt.IsZero() {
		adj.CreatedAt = time.Now().UTC()
	}

	product.StockQty = next
	product.UpdatedAt = time.Now().UTC()
	s.products[adj.ProductID] = product
	s.adjustments = append(s.adjustments, adj)

	updated := product
	return &updated, nil
}

func (s *Store) ListInventoryAdjustments(_ context.Context, productID string, limit int) ([]domain.InventoryAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.InventoryAdjustment, 0, 64)
	for _, adj := range s.adjustments {
		if productID != "" && adj.ProductID != productID {
			continue
		}
		result = append(result, adj)
	}
	sortNewestFirst(result, func(a domain.InventoryAdjustment) (time.Time, string) { return a.CreatedAt, a.ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Name == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if _, exists := s.customers[customer.ID]; exists {
		return nil, store.ErrConflict
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	customer.BalanceCents = 0

	s.customers[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customers[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmpString(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) PostCreditTransaction(_ context.Context, entry domain.CreditTransaction) (*domain.Customer, error) {
	if entry.CustomerID == "" || entry.AmountCents < 1 {
		return nil, store.ErrValidation
	}
	delta, err := balanceDelta(entry.Type, entry.AmountCents)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	customer, exists := s.customers[entry.CustomerID]
	if !exists {
		return nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, entry.CustomerID)
	}
	updated := s.postCreditEntryLocked(customer, entry, delta)
	return &updated, nil
}

// postCreditEntryLocked appends a ledger row and moves the cached balance.
// Callers hold the write lock and have already verified the customer exists.
func (s *Store) postCreditEntryLocked(customer domain.Customer, entry domain.CreditTransaction, delta int64) domain.Customer {
	if entry.ID == "" {
		entry.ID = xid.New("ct")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	customer.BalanceCents += delta
	s.customers[customer.ID] = customer
	s.creditEntries = append(s.creditEntries, entry)
	return customer
}

func (s *Store) ListCreditTransactions(_ context.Context, customerID string, limit int) ([]domain.CreditTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.CreditTransaction, 0, 64)
	for _, entry := range s.creditEntries {
		if entry.CustomerID != customerID {
			continue
		}
		result = append(result, entry)
	}
	sortNewestFirst(result, func(e domain.CreditTransaction) (time.Time, string) { return e.CreatedAt, e.ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate everything before mutating: both the cart against current
	// stock and the payment against the final total. No partial effects.
	totalCents := int64(0)
	pricedItems := make([]domain.SaleItem, 0, len(sale.Items))
	remaining := make(map[string]int, len(sale.Items))
	for _, item := range sale.Items {
		if item.ProductID == "" || item.Qty < 1 {
			return nil, store.ErrValidation
		}
		product, exists := s.products[item.ProductID]
		if !exists || !product.Active {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, item.ProductID)
		}
		// Duplicate lines for one product draw down the same stock, so each
		// line checks against what earlier lines left over.
		left, seen := remaining[item.ProductID]
		if !seen {
			left = product.StockQty
		}
		if left < item.Qty {
			return nil, fmt.Errorf("%w: product %s has %d on hand, %d requested", store.ErrInsufficientStock, product.Name, left, item.Qty)
		}
		remaining[item.ProductID] = left - item.Qty
		lineTotal := product.PriceCents * int64(item.Qty)
		pricedItems = append(pricedItems, domain.SaleItem{
			ProductID:      item.ProductID,
			Name:           product.Name,
			Qty:            item.Qty,
			UnitPriceCents: product.PriceCents,
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
	var customer domain.Customer
	if debitCents > 0 {
		c, exists := s.customers[sale.CustomerID]
		if !exists {
			return nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, sale.CustomerID)
		}
		customer = c
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.SaleNumber == "" {
		sale.SaleNumber = xid.New("SN")
	}
	if _, taken := s.saleNumbers[sale.SaleNumber]; taken {
		return nil, fmt.Errorf("%w: duplicate sale number", store.ErrConflict)
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	sale.TotalCents = totalCents
	sale.FinalCents = finalCents
	sale.Items = pricedItems

	// All checks passed; apply.
	for _, item := range sale.Items {
		product := s.products[item.ProductID]
		product.StockQty -= item.Qty
		product.UpdatedAt = sale.CreatedAt
		s.products[item.ProductID] = product
		s.adjustments = append(s.adjustments, domain.InventoryAdjustment{
			ID:        xid.New("adj"),
			ProductID: item.ProductID,
			Type:      domain.AdjustSubtract,
			Qty:       item.Qty,
			Reason:    "sale",
			SaleID:    sale.ID,
			CreatedAt: sale.CreatedAt,
		})
	}

	if debitCents > 0 {
		s.postCreditEntryLocked(customer, domain.CreditTransaction{
			ID:          xid.New("ct"),
			CustomerID:  sale.CustomerID,
			Type:        domain.CreditEntryDebit,
			AmountCents: debitCents,
			Description: "sale " + sale.SaleNumber,
			SaleID:      sale.ID,
			CreatedAt:   sale.CreatedAt,
		}, debitCents)
	}

	saleCopy := cloneSale(&sale)
	s.salesByID[sale.ID] = saleCopy
	s.saleNumbers[sale.SaleNumber] = sale.ID

	return cloneSale(saleCopy), nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, 64)
	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		result = append(result, *cloneSale(sale))
	}
	sortNewestFirst(result, func(sale domain.Sale) (time.Time, string) { return sale.CreatedAt, sale.ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) VoidSale(_ context.Context, id string, reason string, at time.Time) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if sale.PaymentStatus == domain.SaleStatusVoided {
		return nil, fmt.Errorf("%w: sale already voided", store.ErrValidation)
	}

	for _, item := range sale.Items {
		product := s.products[item.ProductID]
		product.StockQty += item.Qty
		product.UpdatedAt = at
		s.products[item.ProductID] = product
		s.adjustments = append(s.adjustments, domain.InventoryAdjustment{
			ID:        xid.New("adj"),
			ProductID: item.ProductID,
			Type:      domain.AdjustAdd,
			Qty:       item.Qty,
			Reason:    "void restock",
			SaleID:    sale.ID,
			CreatedAt: at,
		})
	}

	// Reverse the debit the sale posted so the customer balance returns to
	// its pre-sale value.
	reversal := int64(0)
	switch sale.PaymentMethod {
	case domain.PaymentCredit:
		reversal = sale.FinalCents
	case domain.PaymentPartial:
		reversal = sale.RemainingCents
	}
	if reversal > 0 && sale.CustomerID != "" {
		if customer, exists := s.customers[sale.CustomerID]; exists {
			s.postCreditEntryLocked(customer, domain.CreditTransaction{
				ID:          xid.New("ct"),
				CustomerID:  sale.CustomerID,
				Type:        domain.CreditEntryPayment,
				AmountCents: reversal,
				Description: "void sale " + sale.SaleNumber,
				SaleID:      sale.ID,
				CreatedAt:   at,
			}, -reversal)
		}
	}

	sale.PaymentStatus = domain.SaleStatusVoided
	sale.VoidReason = reason
	voidedAt := at
	sale.VoidedAt = &voidedAt

	return cloneSale(sale), nil
}

func (s *Store) GetDailyReport(_ context.Context, from time.Time, to time.Time) (domain.DailyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.DailyReport{
		ByPayment: make([]domain.DailyReportPayment, 0, 4),
	}
	byPayment := map[string]*domain.DailyReportPayment{}

	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		if sale.PaymentStatus == domain.SaleStatusVoided {
			continue
		}

		report.Sales++
		report.GrossSalesCents += sale.TotalCents
		report.DiscountCents += sale.DiscountCents
		report.NetSalesCents += sale.FinalCents
		if sale.PaymentStatus == domain.SaleStatusPending {
			report.CreditOutstandingCents += sale.RemainingCents
		}

		payment := byPayment[sale.PaymentMethod]
		if payment == nil {
			payment = &domain.DailyReportPayment{PaymentMethod: sale.PaymentMethod}
			byPayment[sale.PaymentMethod] = payment
		}
		payment.Sales++
		payment.TotalCents += sale.FinalCents
	}

	for _, entry := range byPayment {
		report.ByPayment = append(report.ByPayment, *entry)
	}
	slices.SortFunc(report.ByPayment, func(a, b domain.DailyReportPayment) int {
		return cmpString(a.PaymentMethod, b.PaymentMethod)
	})

	return report, nil
}

func (s *Store) ListLowStock(_ context.Context) ([]domain.LowStockItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.LowStockItem, 0, 16)
	for _, p := range s.products {
		if !p.Active || p.StockQty > p.MinStockLevel {
			continue
		}
		items = append(items, domain.LowStockItem{
			ProductID:     p.ID,
			Name:          p.Name,
			Category:      p.Category,
			StockQty:      p.StockQty,
			MinStockLevel: p.MinStockLevel,
		})
	}
	slices.SortFunc(items, func(a, b domain.LowStockItem) int {
		if a.StockQty == b.StockQty {
			return cmpString(a.Name, b.Name)
		}
		if a.StockQty < b.StockQty {
			return -1
		}
		return 1
	})
	return items, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}
	sortNewestFirst(result, func(e domain.AuditLog) (time.Time, string) { return e.CreatedAt, e.ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrValidation
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrValidation
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
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

func sortNewestFirst[T any](items []T, key func(T) (time.Time, string)) {
	slices.SortFunc(items, func(a, b T) int {
		at, aid := key(a)
		bt, bid := key(b)
		if at.Equal(bt) {
			return cmpString(bid, aid)
		}
		if at.After(bt) {
			return -1
		}
		return 1
	})
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dup := *src
	items := make([]domain.SaleItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	if src.VoidedAt != nil {
		at := *src.VoidedAt
		dup.VoidedAt = &at
	}
	return &dup
}
