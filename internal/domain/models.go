package domain

import "time"

// Product is a catalog entry. Stock is the quantity on hand and is only
// mutated by orders and stock movements, never by a catalog edit.
type Product struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	Barcode     string     `json:"barcode,omitempty"`
	Name        string     `json:"name"`
	Unit        string     `json:"unit"`
	Price       int64      `json:"price"`
	Cost        int64      `json:"cost"`
	Stock       int        `json:"stock"`
	Category    string     `json:"category"`
	BatchNumber string     `json:"batch_number,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Unit struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Customer carries a running debt balance. Debt is maintained incrementally
// by order creation/deletion and payments; it is never recomputed from the
// debt ledger.
type Customer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	Gender    string `json:"gender,omitempty"`
	BirthYear int    `json:"birth_year,omitempty"`
	Note      string `json:"note,omitempty"`
	Debt      int64  `json:"debt"`
}

type OrderLine struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Qty         int    `json:"qty"`
	UnitPrice   int64  `json:"unit_price"`
	LineTotal   int64  `json:"line_total"`
}

// Order is immutable once created; the only way to undo its stock and debt
// effects is deleting it outright.
type Order struct {
	ID           string      `json:"id"`
	CustomerID   string      `json:"customer_id,omitempty"`
	CustomerName string      `json:"customer_name,omitempty"`
	Items        []OrderLine `json:"items"`
	TotalAmount  int64       `json:"total_amount"`
	Discount     int64       `json:"discount"`
	FinalAmount  int64       `json:"final_amount"`
	PaidAmount   int64       `json:"paid_amount"`
	DebtAmount   int64       `json:"debt_amount"`
	Status       string      `json:"status"`
	StaffName    string      `json:"staff_name"`
	CreatedAt    time.Time   `json:"created_at"`
}

type StockLine struct {
	ProductID   string     `json:"product_id"`
	ProductName string     `json:"product_name"`
	Qty         int        `json:"qty"`
	UnitCost    int64      `json:"unit_cost"`
	BatchNumber string     `json:"batch_number,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
}

// InventoryTransaction records a stock import (receipt) or export (issue).
// It is append-only: there is no delete or reverse path for stock movements,
// unlike orders.
type InventoryTransaction struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	Code        string      `json:"code"`
	Items       []StockLine `json:"items"`
	TotalAmount int64       `json:"total_amount"`
	StaffName   string      `json:"staff_name"`
	Note        string      `json:"note,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// DebtTransaction is a write-once audit row: either a customer payment or
// an order's unpaid-amount contribution.
type DebtTransaction struct {
	ID           string    `json:"id"`
	CustomerID   string    `json:"customer_id"`
	CustomerName string    `json:"customer_name,omitempty"`
	OrderID      string    `json:"order_id,omitempty"`
	Amount       int64     `json:"amount"`
	Type         string    `json:"type"`
	StaffName    string    `json:"staff_name"`
	Note         string    `json:"note,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserAccount stores a bcrypt password hash, never the plain password.
type UserAccount struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Password    string `json:"password,omitempty"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// MenuConfigItem governs which navigation entries a role may reach.
// Display order is the slice position.
type MenuConfigItem struct {
	ViewID  string `json:"view_id"`
	Visible bool   `json:"visible"`
	Label   string `json:"label,omitempty"`
}

type Settings struct {
	AutoBackup            bool       `json:"auto_backup"`
	BackupIntervalMinutes int        `json:"backup_interval_minutes"`
	LastBackupAt          *time.Time `json:"last_backup_at,omitempty"`
	ExpiryAlertDays       int        `json:"expiry_alert_days"`
	Theme                 string     `json:"theme"`
	ShopName              string     `json:"shop_name"`
	ShopLogo              string     `json:"shop_logo,omitempty"`
}

// Snapshot bundles every collection plus settings into one document. It is
// the on-disk backup format and the wire format for export/import.
type Snapshot struct {
	ExportedAt            time.Time              `json:"exported_at"`
	Products              []Product              `json:"products"`
	Categories            []Category             `json:"categories"`
	Units                 []Unit                 `json:"units"`
	Customers             []Customer             `json:"customers"`
	Orders                []Order                `json:"orders"`
	InventoryTransactions []InventoryTransaction `json:"inventory_transactions"`
	DebtTransactions      []DebtTransaction      `json:"debt_transactions"`
	Users                 []UserAccount          `json:"users"`
	MenuConfig            []MenuConfigItem       `json:"menu_config"`
	Settings              Settings               `json:"settings"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type OrderLineRequest struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	UnitPrice int64  `json:"unit_price"`
}

type OrderCreateRequest struct {
	CustomerID string             `json:"customer_id,omitempty"`
	Items      []OrderLineRequest `json:"items"`
	Discount   int64              `json:"discount"`
	PaidAmount int64              `json:"paid_amount"`
}

type StockLineRequest struct {
	ProductID   string `json:"product_id"`
	Qty         int    `json:"qty"`
	UnitCost    int64  `json:"unit_cost"`
	BatchNumber string `json:"batch_number,omitempty"`
	ExpiryDate  string `json:"expiry_date,omitempty"`
}

type InventoryTransactionRequest struct {
	Type  string             `json:"type"`
	Code  string             `json:"code,omitempty"`
	Note  string             `json:"note,omitempty"`
	Items []StockLineRequest `json:"items"`
}

type PayDebtRequest struct {
	CustomerID string `json:"customer_id"`
	Amount     int64  `json:"amount"`
	Note       string `json:"note,omitempty"`
}

type PayDebtResponse struct {
	Customer    Customer        `json:"customer"`
	Transaction DebtTransaction `json:"transaction"`
}

type SalesSummary struct {
	Date        string `json:"date"`
	Orders      int    `json:"orders"`
	Revenue     int64  `json:"revenue"`
	Discount    int64  `json:"discount"`
	Paid        int64  `json:"paid"`
	NewDebt     int64  `json:"new_debt"`
	ItemsSold   int    `json:"items_sold"`
	GrossProfit int64  `json:"gross_profit"`
}

type DebtSummaryEntry struct {
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	Phone        string `json:"phone,omitempty"`
	Debt         int64  `json:"debt"`
}

type DebtSummary struct {
	TotalDebt int64              `json:"total_debt"`
	Debtors   []DebtSummaryEntry `json:"debtors"`
}

type ExpiryAlert struct {
	ProductID   string     `json:"product_id"`
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	BatchNumber string     `json:"batch_number,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	DaysLeft    int        `json:"days_left"`
	Stock       int        `json:"stock"`
}

type ImportResult struct {
	Ok        bool   `json:"ok"`
	Message   string `json:"message"`
	Products  int    `json:"products"`
	Customers int    `json:"customers"`
	Orders    int    `json:"orders"`
}

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

const (
	OrderStatusCompleted = "completed"
)

const (
	StockImport = "import"
	StockExport = "export"
)

const (
	DebtTypePayment   = "payment"
	DebtTypeOrderDebt = "order_debt"
)
