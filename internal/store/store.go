package store

import (
	"context"
	"errors"

	"warungku/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("already exists")
)

// Collection keys as persisted in the key-value store. The backup document
// mirrors this layout field for field.
const (
	ColProducts   = "products"
	ColCategories = "categories"
	ColUnits      = "units"
	ColCustomers  = "customers"
	ColOrders     = "orders"
	ColInventory  = "inventory_transactions"
	ColDebts      = "debt_transactions"
	ColUsers      = "users"
	ColMenuConfig = "menu_config"
	ColSettings   = "settings"
)

// Repository is the data-access surface. Save methods upsert: an empty ID
// generates a new one and appends, a known ID replaces the stored entry.
// CreateOrder, DeleteOrder, PayDebt and CreateInventoryTransaction are the
// only operations that mutate more than one collection; each commits its
// writes as a single transaction.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	SaveProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	ListCategories(ctx context.Context) ([]domain.Category, error)
	SaveCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	ListUnits(ctx context.Context) ([]domain.Unit, error)
	SaveUnit(ctx context.Context, unit domain.Unit) (*domain.Unit, error)
	DeleteUnit(ctx context.Context, id string) error

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	SaveCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error

	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	FindUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	SaveUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	DeleteUser(ctx context.Context, id string) error

	GetMenuConfig(ctx context.Context) ([]domain.MenuConfigItem, error)
	ReplaceMenuConfig(ctx context.Context, items []domain.MenuConfigItem) error

	GetSettings(ctx context.Context) (domain.Settings, error)
	UpdateSettings(ctx context.Context, settings domain.Settings) (*domain.Settings, error)

	ListOrders(ctx context.Context) ([]domain.Order, error)
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	DeleteOrder(ctx context.Context, id string) error

	ListInventoryTransactions(ctx context.Context) ([]domain.InventoryTransaction, error)
	GetInventoryTransactionByID(ctx context.Context, id string) (*domain.InventoryTransaction, error)
	CreateInventoryTransaction(ctx context.Context, tx domain.InventoryTransaction) (*domain.InventoryTransaction, error)

	ListDebtTransactions(ctx context.Context, customerID string, limit int) ([]domain.DebtTransaction, error)
	PayDebt(ctx context.Context, customerID string, amount int64, staffName string, note string) (*domain.PayDebtResponse, error)

	ExportSnapshot(ctx context.Context) (*domain.Snapshot, error)
	ImportSnapshot(ctx context.Context, snapshot domain.Snapshot) error
}
