package store

import (
	"context"
	"errors"
	"time"

	"svetafor/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("already exists")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Repository interface {
	ListProducts(ctx context.Context, storeID string, query string, limit int) ([]domain.Product, error)
	GetProductByID(ctx context.Context, storeID string, productID string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	AdjustStock(ctx context.Context, storeID string, productID string, countDelta int, warehouseDelta int) error

	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetOrderByID(ctx context.Context, storeID string, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.Order, error)
	CancelOrder(ctx context.Context, storeID string, orderID string, at time.Time) (*domain.Order, error)

	CreateDebtor(ctx context.Context, debtor domain.Debtor) (*domain.Debtor, error)
	GetDebtorByID(ctx context.Context, storeID string, debtorID string) (*domain.Debtor, error)
	ListDebtors(ctx context.Context, storeID string, limit int) ([]domain.Debtor, error)
	AdjustDebtorBalance(ctx context.Context, storeID string, debtorID string, deltaCents int64) (*domain.Debtor, error)
	CreateDebtDocument(ctx context.Context, doc domain.DebtDocument) (*domain.DebtDocument, error)
	ListDebtDocuments(ctx context.Context, storeID string, debtorID string, limit int) ([]domain.DebtDocument, error)

	GetExchangeRate(ctx context.Context, storeID string) (*domain.ExchangeRate, error)
	SetExchangeRate(ctx context.Context, rate domain.ExchangeRate) (*domain.ExchangeRate, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	GetSalesSummary(ctx context.Context, storeID string, from time.Time, to time.Time) (domain.SalesSummary, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
