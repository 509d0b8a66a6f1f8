package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"warungku/backend/internal/cache"
	"warungku/backend/internal/domain"
	"warungku/backend/internal/store"
	"warungku/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Service validates requests and orchestrates repository calls. The
// repository owns the multi-collection bookkeeping; the service owns the
// bound checks the repository deliberately leaves to its caller
// (insufficient stock on a sale, overpayment on a debt payment).
type Service struct {
	repo    store.Repository
	summary cache.SummaryCache
	log     *zap.Logger
}

func New(repo store.Repository, summary cache.SummaryCache, logger *zap.Logger) *Service {
	if summary == nil {
		summary = cache.NoopSummaryCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, summary: summary, log: logger}
}

// ---- catalog ----

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) SaveProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	product.Code = strings.ToUpper(strings.TrimSpace(product.Code))
	if product.Code == "" || strings.TrimSpace(product.Name) == "" {
		return domain.Product{}, store.ErrInvalidInput
	}
	if product.Price < 0 || product.Cost < 0 {
		return domain.Product{}, fmt.Errorf("%w: price and cost must not be negative", store.ErrInvalidInput)
	}

	saved, err := s.repo.SaveProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	return s.repo.DeleteProduct(ctx, id)
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) SaveCategory(ctx context.Context, category domain.Category) (domain.Category, error) {
	saved, err := s.repo.SaveCategory(ctx, category)
	if err != nil {
		return domain.Category{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	return s.repo.DeleteCategory(ctx, id)
}

func (s *Service) ListUnits(ctx context.Context) ([]domain.Unit, error) {
	return s.repo.ListUnits(ctx)
}

func (s *Service) SaveUnit(ctx context.Context, unit domain.Unit) (domain.Unit, error) {
	saved, err := s.repo.SaveUnit(ctx, unit)
	if err != nil {
		return domain.Unit{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteUnit(ctx context.Context, id string) error {
	return s.repo.DeleteUnit(ctx, id)
}

// ---- customers ----

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) SaveCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	saved, err := s.repo.SaveCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	return s.repo.DeleteCustomer(ctx, id)
}

// ---- orders ----

func (s *Service) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.repo.ListOrders(ctx)
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return *order, nil
}

// CreateOrder recomputes every amount server-side: line totals from the
// current catalog price (or an explicit override), the order total as their
// sum, and the unpaid remainder floored at zero. A sale of more than the
// available stock is rejected up front; the repository itself does not
// enforce a stock floor.
func (s *Service) CreateOrder(ctx context.Context, req domain.OrderCreateRequest) (domain.Order, error) {
	lines := normalizeOrderLines(req.Items)
	if len(lines) == 0 {
		return domain.Order{}, fmt.Errorf("%w: order has no items", store.ErrInvalidInput)
	}
	if req.Discount < 0 || req.PaidAmount < 0 {
		return domain.Order{}, fmt.Errorf("%w: discount and paid amount must not be negative", store.ErrInvalidInput)
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	items := make([]domain.OrderLine, 0, len(lines))
	total := int64(0)
	for _, line := range lines {
		product, ok := byID[line.ProductID]
		if !ok {
			return domain.Order{}, fmt.Errorf("%w: product %s", store.ErrNotFound, line.ProductID)
		}
		if product.Stock < line.Qty {
			return domain.Order{}, fmt.Errorf("%w: %s has %d left", store.ErrInsufficientStock, product.Name, product.Stock)
		}
		unitPrice := product.Price
		if line.UnitPrice > 0 {
			unitPrice = line.UnitPrice
		}
		lineTotal := int64(line.Qty) * unitPrice
		items = append(items, domain.OrderLine{
			ProductID:   product.ID,
			ProductName: product.Name,
			Qty:         line.Qty,
			UnitPrice:   unitPrice,
			LineTotal:   lineTotal,
		})
		total += lineTotal
	}

	if req.Discount > total {
		return domain.Order{}, fmt.Errorf("%w: discount exceeds order total", store.ErrInvalidInput)
	}
	final := total - req.Discount
	debt := final - req.PaidAmount
	if debt < 0 {
		debt = 0
	}

	var customerName string
	if req.CustomerID != "" {
		customer, err := s.repo.GetCustomerByID(ctx, req.CustomerID)
		if err != nil {
			return domain.Order{}, err
		}
		customerName = customer.Name
	} else if debt > 0 {
		return domain.Order{}, fmt.Errorf("%w: a walk-in sale must be fully paid", store.ErrInvalidInput)
	}

	actor, _ := ActorFromContext(ctx)
	order := domain.Order{
		ID:           xid.New("ord"),
		CustomerID:   req.CustomerID,
		CustomerName: customerName,
		Items:        items,
		TotalAmount:  total,
		Discount:     req.Discount,
		FinalAmount:  final,
		PaidAmount:   req.PaidAmount,
		DebtAmount:   debt,
		Status:       domain.OrderStatusCompleted,
		StaffName:    actor.Username,
		CreatedAt:    time.Now().UTC(),
	}

	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return domain.Order{}, err
	}

	s.log.Info("order created",
		zap.String("order_id", created.ID),
		zap.Int64("final_amount", created.FinalAmount),
		zap.Int64("debt_amount", created.DebtAmount),
		zap.String("staff", created.StaffName),
	)
	return *created, nil
}

func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}

	if err := s.repo.DeleteOrder(ctx, id); err != nil {
		return err
	}
	s.log.Info("order deleted", zap.String("order_id", id), zap.String("staff", actor.Username))
	return nil
}

// ---- stock movements ----

func (s *Service) ListInventoryTransactions(ctx context.Context) ([]domain.InventoryTransaction, error) {
	return s.repo.ListInventoryTransactions(ctx)
}

func (s *Service) GetInventoryTransaction(ctx context.Context, id string) (domain.InventoryTransaction, error) {
	tx, err := s.repo.GetInventoryTransactionByID(ctx, id)
	if err != nil {
		return domain.InventoryTransaction{}, err
	}
	return *tx, nil
}

// CreateInventoryTransaction records a stock movement. Exports carry no
// stock floor: issuing more than the recorded quantity drives stock
// negative rather than failing, so physical counts can be reconciled later
// with a corrective import.
func (s *Service) CreateInventoryTransaction(ctx context.Context, req domain.InventoryTransactionRequest) (domain.InventoryTransaction, error) {
	txType := strings.ToLower(strings.TrimSpace(req.Type))
	if txType != domain.StockImport && txType != domain.StockExport {
		return domain.InventoryTransaction{}, fmt.Errorf("%w: transaction type %q", store.ErrInvalidInput, req.Type)
	}
	if len(req.Items) == 0 {
		return domain.InventoryTransaction{}, fmt.Errorf("%w: transaction has no items", store.ErrInvalidInput)
	}

	now := time.Now().UTC()
	items := make([]domain.StockLine, 0, len(req.Items))
	total := int64(0)
	for _, line := range req.Items {
		if line.ProductID == "" || line.Qty < 1 {
			return domain.InventoryTransaction{}, fmt.Errorf("%w: each line needs a product and a positive qty", store.ErrInvalidInput)
		}
		if line.UnitCost < 0 {
			return domain.InventoryTransaction{}, fmt.Errorf("%w: unit cost must not be negative", store.ErrInvalidInput)
		}

		var expiry *time.Time
		if strings.TrimSpace(line.ExpiryDate) != "" {
			parsed, err := time.Parse("2006-01-02", line.ExpiryDate)
			if err != nil {
				return domain.InventoryTransaction{}, fmt.Errorf("%w: expiry date %q", store.ErrInvalidInput, line.ExpiryDate)
			}
			d := parsed.UTC()
			expiry = &d
		}

		product, err := s.repo.GetProductByID(ctx, line.ProductID)
		productName := ""
		if err == nil {
			productName = product.Name
		}

		items = append(items, domain.StockLine{
			ProductID:   line.ProductID,
			ProductName: productName,
			Qty:         line.Qty,
			UnitCost:    line.UnitCost,
			BatchNumber: strings.TrimSpace(line.BatchNumber),
			ExpiryDate:  expiry,
		})
		total += int64(line.Qty) * line.UnitCost
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		prefix := "IMP"
		if txType == domain.StockExport {
			prefix = "EXP"
		}
		code = fmt.Sprintf("%s-%s", prefix, now.Format("20060102-150405"))
	}

	actor, _ := ActorFromContext(ctx)
	created, err := s.repo.CreateInventoryTransaction(ctx, domain.InventoryTransaction{
		ID:          xid.New("stk"),
		Type:        txType,
		Code:        code,
		Items:       items,
		TotalAmount: total,
		StaffName:   actor.Username,
		Note:        strings.TrimSpace(req.Note),
		CreatedAt:   now,
	})
	if err != nil {
		return domain.InventoryTransaction{}, err
	}

	s.log.Info("stock movement recorded",
		zap.String("transaction_id", created.ID),
		zap.String("type", created.Type),
		zap.String("code", created.Code),
		zap.Int("lines", len(created.Items)),
	)
	return *created, nil
}

// ---- debts ----

func (s *Service) ListDebtTransactions(ctx context.Context, customerID string, limit int) ([]domain.DebtTransaction, error) {
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListDebtTransactions(ctx, customerID, limit)
}

// PayDebt enforces the payment bounds the repository leaves to its caller:
// the amount must be positive and must not exceed the customer's current
// balance.
func (s *Service) PayDebt(ctx context.Context, req domain.PayDebtRequest) (domain.PayDebtResponse, error) {
	if req.CustomerID == "" {
		return domain.PayDebtResponse{}, store.ErrInvalidInput
	}
	if req.Amount <= 0 {
		return domain.PayDebtResponse{}, fmt.Errorf("%w: payment amount must be positive", store.ErrInvalidInput)
	}

	customer, err := s.repo.GetCustomerByID(ctx, req.CustomerID)
	if err != nil {
		return domain.PayDebtResponse{}, err
	}
	if req.Amount > customer.Debt {
		return domain.PayDebtResponse{}, fmt.Errorf("%w: payment %d exceeds current debt %d", store.ErrInvalidInput, req.Amount, customer.Debt)
	}

	actor, _ := ActorFromContext(ctx)
	resp, err := s.repo.PayDebt(ctx, req.CustomerID, req.Amount, actor.Username, req.Note)
	if err != nil {
		return domain.PayDebtResponse{}, err
	}

	s.log.Info("debt payment recorded",
		zap.String("customer_id", req.CustomerID),
		zap.Int64("amount", req.Amount),
		zap.Int64("remaining_debt", resp.Customer.Debt),
	)
	return *resp, nil
}

// ---- users ----

func (s *Service) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Password = ""
	}
	return users, nil
}

// SaveUser hashes a supplied password before it reaches the repository; an
// empty password on an update keeps the stored hash.
func (s *Service) SaveUser(ctx context.Context, user domain.UserAccount) (domain.UserAccount, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.UserAccount{}, fmt.Errorf("admin role required")
	}
	if user.Role != domain.RoleAdmin && user.Role != domain.RoleStaff {
		user.Role = domain.RoleStaff
	}

	if user.Password != "" {
		if len(user.Password) < 3 {
			return domain.UserAccount{}, fmt.Errorf("%w: password too short", store.ErrInvalidInput)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
		if err != nil {
			return domain.UserAccount{}, fmt.Errorf("hash password: %w", err)
		}
		user.Password = string(hash)
	}

	saved, err := s.repo.SaveUser(ctx, user)
	if err != nil {
		return domain.UserAccount{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return err
	}
	admins := 0
	var target *domain.UserAccount
	for i := range users {
		if users[i].Role == domain.RoleAdmin {
			admins++
		}
		if users[i].ID == id {
			target = &users[i]
		}
	}
	if target == nil {
		return store.ErrNotFound
	}
	if target.Role == domain.RoleAdmin && admins == 1 {
		return fmt.Errorf("%w: cannot delete the last admin account", store.ErrInvalidInput)
	}

	return s.repo.DeleteUser(ctx, id)
}

// ---- settings / menu ----

func (s *Service) GetSettings(ctx context.Context) (domain.Settings, error) {
	return s.repo.GetSettings(ctx)
}

func (s *Service) UpdateSettings(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Settings{}, fmt.Errorf("admin role required")
	}
	updated, err := s.repo.UpdateSettings(ctx, settings)
	if err != nil {
		return domain.Settings{}, err
	}
	return *updated, nil
}

func (s *Service) GetMenuConfig(ctx context.Context) ([]domain.MenuConfigItem, error) {
	return s.repo.GetMenuConfig(ctx)
}

func (s *Service) ReplaceMenuConfig(ctx context.Context, items []domain.MenuConfigItem) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}
	return s.repo.ReplaceMenuConfig(ctx, items)
}

// normalizeOrderLines drops empty lines and merges duplicate product ids so
// downstream stock math sees one line per product.
func normalizeOrderLines(lines []domain.OrderLineRequest) []domain.OrderLineRequest {
	merged := make([]domain.OrderLineRequest, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, line := range lines {
		if line.ProductID == "" || line.Qty < 1 {
			continue
		}
		if at, ok := index[line.ProductID]; ok {
			merged[at].Qty += line.Qty
			if line.UnitPrice > 0 {
				merged[at].UnitPrice = line.UnitPrice
			}
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged
}
