package store

import (
	"context"
	"errors"
	"time"

	"tindahan/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("invalid input")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("conflict")
	ErrCustomerRequired  = errors.New("customer required")
)

// Repository is the transactional persistence boundary. Every multi-step
// mutation (CreateSale, VoidSale, PostCreditTransaction, AdjustStock) must be
// atomic: either all of its effects are visible afterwards or none are.
type Repository interface {
	ListProducts(ctx context.Context, includeInactive bool) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	AdjustStock(ctx context.Context, adj domain.InventoryAdjustment) (*domain.Product, error)
	ListInventoryAdjustments(ctx context.Context, productID string, limit int) ([]domain.InventoryAdjustment, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	PostCreditTransaction(ctx context.Context, entry domain.CreditTransaction) (*domain.Customer, error)
	ListCreditTransactions(ctx context.Context, customerID string, limit int) ([]domain.CreditTransaction, error)

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error)
	VoidSale(ctx context.Context, id string, reason string, at time.Time) (*domain.Sale, error)

	GetDailyReport(ctx context.Context, from time.Time, to time.Time) (domain.DailyReport, error)
	ListLowStock(ctx context.Context) ([]domain.LowStockItem, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
