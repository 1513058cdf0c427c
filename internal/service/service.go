package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tindahan/backend/internal/cache"
	"tindahan/backend/internal/domain"
	"tindahan/backend/internal/notify"
	"tindahan/backend/internal/store"
	"tindahan/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo        store.Repository
	reportCache cache.ReportCache
	notifier    notify.Notifier
	reportTTL   time.Duration
}

func New(repo store.Repository, reportCache cache.ReportCache, notifier notify.Notifier, reportTTL time.Duration) *Service {
	if reportCache == nil {
		reportCache = cache.NoopReportCache{}
	}
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	if reportTTL < 1 {
		reportTTL = 30 * time.Second
	}

	return &Service{
		repo:        repo,
		reportCache: reportCache,
		notifier:    notifier,
		reportTTL:   reportTTL,
	}
}

func (s *Service) ListProducts(ctx context.Context, includeInactive bool) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, includeInactive)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) GetProductByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return domain.Product{}, store.ErrValidation
	}
	product, err := s.repo.GetProductByBarcode(ctx, barcode)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Barcode = strings.TrimSpace(req.Barcode)
	req.Category = strings.TrimSpace(req.Category)

	if req.Name == "" || req.Category == "" {
		return domain.Product{}, store.ErrValidation
	}
	if req.PriceCents < 1 || req.CostCents < 0 || req.MinStockLevel < 0 || req.InitialStock < 0 {
		return domain.Product{}, store.ErrValidation
	}

	product := domain.Product{
		Name:          req.Name,
		Barcode:       req.Barcode,
		Category:      req.Category,
		PriceCents:    req.PriceCents,
		CostCents:     req.CostCents,
		StockQty:      req.InitialStock,
		MinStockLevel: req.MinStockLevel,
		Active:        true,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%d,stock=%d", created.Name, created.PriceCents, created.StockQty))

	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrValidation
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrValidation
		}
		updated.Name = name
	}
	if req.Barcode != nil {
		updated.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return domain.Product{}, store.ErrValidation
		}
		updated.Category = category
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 1 {
			return domain.Product{}, store.ErrValidation
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.CostCents != nil {
		if *req.CostCents < 0 {
			return domain.Product{}, store.ErrValidation
		}
		updated.CostCents = *req.CostCents
	}
	if req.MinStockLevel != nil {
		if *req.MinStockLevel < 0 {
			return domain.Product{}, store.ErrValidation
		}
		updated.MinStockLevel = *req.MinStockLevel
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("active=%t,price=%d", saved.Active, saved.PriceCents))

	return *saved, nil
}

func (s *Service) AdjustStock(ctx context.Context, req domain.StockAdjustRequest) (domain.StockAdjustResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.StockAdjustResponse{}, fmt.Errorf("admin role required")
	}

	req.ProductID = strings.TrimSpace(req.ProductID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.ProductID == "" {
		return domain.StockAdjustResponse{}, store.ErrValidation
	}
	if req.Reason == "" {
		req.Reason = "manual adjustment"
	}

	adj := domain.InventoryAdjustment{
		ID:          xid.New("adj"),
		ProductID:   req.ProductID,
		Type:        req.Type,
		Qty:         req.Qty,
		Reason:      req.Reason,
		PerformedBy: actor.Username,
		CreatedAt:   time.Now().UTC(),
	}

	product, err := s.repo.AdjustStock(ctx, adj)
	if err != nil {
		return domain.StockAdjustResponse{}, err
	}

	s.logAudit(ctx, "stock_adjust", "product", req.ProductID, fmt.Sprintf("type=%s,qty=%d,reason=%s", req.Type, req.Qty, req.Reason))

	return domain.StockAdjustResponse{Product: *product, Adjustment: adj}, nil
}

func (s *Service) ListInventoryAdjustments(ctx context.Context, productID string, limit int) ([]domain.InventoryAdjustment, error) {
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListInventoryAdjustments(ctx, strings.TrimSpace(productID), limit)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Customer{}, store.ErrValidation
	}

	customer := domain.Customer{
		Name:    req.Name,
		Phone:   strings.TrimSpace(req.Phone),
		Address: strings.TrimSpace(req.Address),
	}

	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_create", "customer", created.ID, created.Name)

	return *created, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) PostCreditTransaction(ctx context.Context, req domain.CreditTransactionRequest) (domain.CreditTransactionResponse, error) {
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.Description = strings.TrimSpace(req.Description)
	if req.CustomerID == "" || req.AmountCents < 1 {
		return domain.CreditTransactionResponse{}, store.ErrValidation
	}
	switch req.Type {
	case domain.CreditEntryCredit, domain.CreditEntryDebit, domain.CreditEntryPayment:
	default:
		return domain.CreditTransactionResponse{}, store.ErrValidation
	}

	entry := domain.CreditTransaction{
		ID:          xid.New("ct"),
		CustomerID:  req.CustomerID,
		Type:        req.Type,
		AmountCents: req.AmountCents,
		Description: req.Description,
		CreatedAt:   time.Now().UTC(),
	}

	customer, err := s.repo.PostCreditTransaction(ctx, entry)
	if err != nil {
		return domain.CreditTransactionResponse{}, err
	}

	s.logAudit(ctx, "credit_transaction", "customer", req.CustomerID, fmt.Sprintf("type=%s,amount=%d", req.Type, req.AmountCents))

	return domain.CreditTransactionResponse{Customer: *customer, Transaction: entry}, nil
}

func (s *Service) ListCreditTransactions(ctx context.Context, customerID string, limit int) ([]domain.CreditTransaction, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, store.ErrValidation
	}
	if limit < 1 {
		limit = 100
	}
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return s.repo.ListCreditTransactions(ctx, customerID, limit)
}

// CreateSale validates the request shape and delegates the priced, atomic
// write to the repository. Pricing, stock checks, and the credit-ledger debit
// all happen inside the store transaction.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.SaleResponse, error) {
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.PaymentMethod = strings.TrimSpace(req.PaymentMethod)
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentCash
	}
	if !isSupportedPaymentMethod(req.PaymentMethod) {
		return domain.SaleResponse{}, store.ErrValidation
	}
	if req.DiscountCents < 0 || req.AmountReceivedCents < 0 {
		return domain.SaleResponse{}, store.ErrValidation
	}
	if (req.PaymentMethod == domain.PaymentCredit || req.PaymentMethod == domain.PaymentPartial) && req.CustomerID == "" {
		return domain.SaleResponse{}, store.ErrCustomerRequired
	}

	normalized := normalizeItems(req.Items)
	if len(normalized) == 0 {
		return domain.SaleResponse{}, store.ErrValidation
	}

	items := make([]domain.SaleItem, 0, len(normalized))
	for _, item := range normalized {
		items = append(items, domain.SaleItem{ProductID: item.ProductID, Qty: item.Qty})
	}

	sale := domain.Sale{
		ID:                  xid.New("sale"),
		SaleNumber:          xid.New("SN"),
		CustomerID:          req.CustomerID,
		DiscountCents:       req.DiscountCents,
		PaymentMethod:       req.PaymentMethod,
		AmountReceivedCents: req.AmountReceivedCents,
		CreatedAt:           time.Now().UTC(),
		Items:               items,
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	s.logAudit(ctx, "sale_create", "sale", created.ID, fmt.Sprintf("number=%s,final=%d,payment=%s,status=%s", created.SaleNumber, created.FinalCents, created.PaymentMethod, created.PaymentStatus))
	s.notifyEvent(ctx, "sale.completed", created)

	return domain.SaleResponse{Sale: *created}, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.SaleResponse, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	return domain.SaleResponse{Sale: *sale}, nil
}

func (s *Service) ListSales(ctx context.Context, date string, limit int) (domain.SaleListResponse, error) {
	if limit < 1 {
		limit = 200
	}
	from, to, err := dayRange(date)
	if err != nil {
		return domain.SaleListResponse{}, err
	}

	sales, err := s.repo.ListSales(ctx, from, to, limit)
	if err != nil {
		return domain.SaleListResponse{}, err
	}
	return domain.SaleListResponse{Sales: sales}, nil
}

func (s *Service) VoidSale(ctx context.Context, req domain.VoidSaleRequest) (domain.VoidSaleResponse, error) {
	req.SaleID = strings.TrimSpace(req.SaleID)
	if req.SaleID == "" {
		return domain.VoidSaleResponse{}, store.ErrValidation
	}
	if strings.TrimSpace(req.Reason) == "" {
		req.Reason = "unspecified"
	}

	voidedAt := time.Now().UTC()
	sale, err := s.repo.VoidSale(ctx, req.SaleID, req.Reason, voidedAt)
	if err != nil {
		return domain.VoidSaleResponse{}, err
	}

	s.logAudit(ctx, "sale_void", "sale", sale.ID, req.Reason)
	s.notifyEvent(ctx, "sale.voided", sale)

	return domain.VoidSaleResponse{
		SaleID:        sale.ID,
		PaymentStatus: sale.PaymentStatus,
		VoidedAt:      voidedAt.Format(time.RFC3339),
	}, nil
}

func (s *Service) DailyReport(ctx context.Context, date string) (domain.DailyReport, error) {
	from, to, err := dayRange(date)
	if err != nil {
		return domain.DailyReport{}, err
	}
	day := from.Format("2006-01-02")

	cacheKey := "report:daily:" + day
	if cached, hit, err := s.reportCache.Get(ctx, cacheKey); err != nil {
		log.Printf("[service] WARN: report cache read failed key=%s: %v", cacheKey, err)
	} else if hit {
		return *cached, nil
	}

	report, err := s.repo.GetDailyReport(ctx, from, to)
	if err != nil {
		return domain.DailyReport{}, err
	}
	report.Date = day

	if err := s.reportCache.Set(ctx, cacheKey, &report, s.reportTTL); err != nil {
		log.Printf("[service] WARN: report cache write failed key=%s: %v", cacheKey, err)
	}

	return report, nil
}

func (s *Service) LowStockReport(ctx context.Context) (domain.LowStockResponse, error) {
	items, err := s.repo.ListLowStock(ctx)
	if err != nil {
		return domain.LowStockResponse{}, err
	}
	return domain.LowStockResponse{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Items:       items,
	}, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrValidation
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) CreateCashier(ctx context.Context, req domain.CashierCreateRequest) (domain.CashierUser, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.CashierUser{}, fmt.Errorf("admin role required")
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || len(req.Password) < 8 {
		return domain.CashierUser{}, store.ErrValidation
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.CashierUser{}, err
	}

	user := domain.UserAccount{
		Username:  username,
		Password:  string(hash),
		Role:      "cashier",
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return domain.CashierUser{}, err
	}

	s.logAudit(ctx, "cashier_create", "user", username, "")

	return domain.CashierUser{
		Username:  user.Username,
		Role:      user.Role,
		Active:    user.Active,
		CreatedAt: user.CreatedAt,
	}, nil
}

func (s *Service) ListCashiers(ctx context.Context) ([]domain.CashierUser, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return nil, fmt.Errorf("admin role required")
	}

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	cashiers := make([]domain.CashierUser, 0, len(users))
	for _, user := range users {
		cashiers = append(cashiers, domain.CashierUser{
			Username:  user.Username,
			Role:      user.Role,
			Active:    user.Active,
			CreatedAt: user.CreatedAt,
		})
	}
	return cashiers, nil
}

// notifyEvent is best effort. A broker outage must never fail an operation
// that already committed.
func (s *Service) notifyEvent(ctx context.Context, event string, payload any) {
	if err := s.notifier.Notify(ctx, event, payload); err != nil {
		log.Printf("[notify] WARN: failed to publish %s: %v", event, err)
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		Actor:      actor.Username,
		Role:       actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

// normalizeItems merges duplicate cart lines and drops empty ones.
func normalizeItems(items []domain.CartItem) []domain.CartItem {
	agg := make(map[string]int, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		if item.ProductID == "" || item.Qty < 1 {
			continue
		}
		if _, seen := agg[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		agg[item.ProductID] += item.Qty
	}

	normalized := make([]domain.CartItem, 0, len(agg))
	for _, id := range order {
		normalized = append(normalized, domain.CartItem{ProductID: id, Qty: agg[id]})
	}
	return normalized
}

func dayRange(date string) (time.Time, time.Time, error) {
	var day time.Time
	if strings.TrimSpace(date) == "" {
		now := time.Now().UTC()
		day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return time.Time{}, time.Time{}, store.ErrValidation
		}
		day = parsed.UTC()
	}
	return day, day.Add(24 * time.Hour), nil
}

func isSupportedPaymentMethod(method string) bool {
	switch method {
	case domain.PaymentCash, domain.PaymentGCash, domain.PaymentCredit, domain.PaymentPartial:
		return true
	}
	return false
}
