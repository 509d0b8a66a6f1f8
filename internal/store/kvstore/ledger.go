package kvstore

import (
	"context"
	"fmt"
	"slices"
	"time"

	"warungku/backend/internal/bus"
	"warungku/backend/internal/domain"
	"warungku/backend/internal/kv"
	"warungku/backend/internal/store"
	"warungku/backend/internal/xid"
)

// The operations in this file are the only ones that touch more than one
// collection. Each runs inside a single kv.Update, so the stock, debt and
// audit writes of one operation commit together or not at all.

func (s *Store) ListOrders(_ context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	err := s.kv.View(func(tx kv.Tx) error {
		var err error
		orders, err = readCollection[domain.Order](tx, store.ColOrders)
		return err
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(orders, func(a, b domain.Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

func (s *Store) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	var found *domain.Order
	err := s.kv.View(func(tx kv.Tx) error {
		orders, err := readCollection[domain.Order](tx, store.ColOrders)
		if err != nil {
			return err
		}
		for i := range orders {
			if orders[i].ID == id {
				dup := cloneOrder(orders[i])
				found = &dup
				return nil
			}
		}
		return store.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// CreateOrder appends the order, decrements stock for every line item and,
// when the order leaves an unpaid amount, adds it to the customer's debt and
// records an audit row. A line item whose product no longer exists is
// skipped: stale references are tolerated, not failed.
func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	if len(order.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusCompleted
	}

	err := s.kv.Update(func(tx kv.Tx) error {
		orders, err := readCollection[domain.Order](tx, store.ColOrders)
		if err != nil {
			return err
		}
		products, err := readCollection[domain.Product](tx, store.ColProducts)
		if err != nil {
			return err
		}

		for _, line := range order.Items {
			for i := range products {
				if products[i].ID == line.ProductID {
					products[i].Stock -= line.Qty
					break
				}
			}
		}

		if order.DebtAmount > 0 && order.CustomerID != "" {
			customers, err := readCollection[domain.Customer](tx, store.ColCustomers)
			if err != nil {
				return err
			}
			for i := range customers {
				if customers[i].ID != order.CustomerID {
					continue
				}
				customers[i].Debt += order.DebtAmount
				debts, err := readCollection[domain.DebtTransaction](tx, store.ColDebts)
				if err != nil {
					return err
				}
				debts = append(debts, domain.DebtTransaction{
					ID:           xid.New("debt"),
					CustomerID:   customers[i].ID,
					CustomerName: customers[i].Name,
					OrderID:      order.ID,
					Amount:       order.DebtAmount,
					Type:         domain.DebtTypeOrderDebt,
					StaffName:    order.StaffName,
					CreatedAt:    order.CreatedAt,
				})
				if err := writeCollection(tx, store.ColDebts, debts); err != nil {
					return err
				}
				if err := writeCollection(tx, store.ColCustomers, customers); err != nil {
					return err
				}
				break
			}
		}

		orders = append(orders, order)
		if err := writeCollection(tx, store.ColProducts, products); err != nil {
			return err
		}
		return writeCollection(tx, store.ColOrders, orders)
	})
	if err != nil {
		return nil, err
	}

	s.publish(bus.ChangeData)
	created := cloneOrder(order)
	return &created, nil
}

// DeleteOrder reverses the order's effects exactly: stock goes back up by
// the ordered quantities and the customer's debt goes back down by the
// order's unpaid amount, regardless of mutations that happened in between.
// The debt ledger keeps the original order_debt row; it is an append-only
// audit trail.
func (s *Store) DeleteOrder(_ context.Context, id string) error {
	err := s.kv.Update(func(tx kv.Tx) error {
		orders, err := readCollection[domain.Order](tx, store.ColOrders)
		if err != nil {
			return err
		}
		idx := -1
		for i := range orders {
			if orders[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return store.ErrNotFound
		}
		order := orders[idx]

		products, err := readCollection[domain.Product](tx, store.ColProducts)
		if err != nil {
			return err
		}
		for _, line := range order.Items {
			for i := range products {
				if products[i].ID == line.ProductID {
					products[i].Stock += line.Qty
					break
				}
			}
		}

		if order.DebtAmount > 0 && order.CustomerID != "" {
			customers, err := readCollection[domain.Customer](tx, store.ColCustomers)
			if err != nil {
				return err
			}
			for i := range customers {
				if customers[i].ID == order.CustomerID {
					customers[i].Debt -= order.DebtAmount
					break
				}
			}
			if err := writeCollection(tx, store.ColCustomers, customers); err != nil {
				return err
			}
		}

		orders = append(orders[:idx], orders[idx+1:]...)
		if err := writeCollection(tx, store.ColProducts, products); err != nil {
			return err
		}
		return writeCollection(tx, store.ColOrders, orders)
	})
	if err != nil {
		return err
	}

	s.publish(bus.ChangeData)
	return nil
}

func (s *Store) ListInventoryTransactions(_ context.Context) ([]domain.InventoryTransaction, error) {
	var transactions []domain.InventoryTransaction
	err := s.kv.View(func(tx kv.Tx) error {
		var err error
		transactions, err = readCollection[domain.InventoryTransaction](tx, store.ColInventory)
		return err
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(transactions, func(a, b domain.InventoryTransaction) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if transactions == nil {
		transactions = []domain.InventoryTransaction{}
	}
	return transactions, nil
}

func (s *Store) GetInventoryTransactionByID(_ context.Context, id string) (*domain.InventoryTransaction, error) {
	var found *domain.InventoryTransaction
	err := s.kv.View(func(tx kv.Tx) error {
		transactions, err := readCollection[domain.InventoryTransaction](tx, store.ColInventory)
		if err != nil {
			return err
		}
		for i := range transactions {
			if transactions[i].ID == id {
				dup := cloneInventoryTransaction(transactions[i])
				found = &dup
				return nil
			}
		}
		return store.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// CreateInventoryTransaction appends the movement and applies it to the
// catalog: imports raise stock and, when a positive unit cost is supplied,
// overwrite the product's cost; exports lower stock with no floor, so stock
// may go negative. Unknown product ids are skipped. Movements have no
// delete or reverse path.
func (s *Store) CreateInventoryTransaction(_ context.Context, transaction domain.InventoryTransaction) (*domain.InventoryTransaction, error) {
	if transaction.Type != domain.StockImport && transaction.Type != domain.StockExport {
		return nil, fmt.Errorf("%w: transaction type %q", store.ErrInvalidInput, transaction.Type)
	}
	if len(transaction.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if transaction.ID == "" {
		transaction.ID = xid.New("stk")
	}
	if transaction.CreatedAt.IsZero() {
		transaction.CreatedAt = time.Now().UTC()
	}

	err := s.kv.Update(func(tx kv.Tx) error {
		transactions, err := readCollection[domain.InventoryTransaction](tx, store.ColInventory)
		if err != nil {
			return err
		}
		products, err := readCollection[domain.Product](tx, store.ColProducts)
		if err != nil {
			return err
		}

		for _, line := range transaction.Items {
			for i := range products {
				if products[i].ID != line.ProductID {
					continue
				}
				if transaction.Type == domain.StockImport {
					products[i].Stock += line.Qty
					if line.UnitCost > 0 {
						products[i].Cost = line.UnitCost
					}
					if line.BatchNumber != "" {
						products[i].BatchNumber = line.BatchNumber
					}
					if line.ExpiryDate != nil {
						products[i].ExpiryDate = line.ExpiryDate
					}
				} else {
					products[i].Stock -= line.Qty
				}
				break
			}
		}

		transactions = append(transactions, transaction)
		if err := writeCollection(tx, store.ColProducts, products); err != nil {
			return err
		}
		return writeCollection(tx, store.ColInventory, transactions)
	})
	if err != nil {
		return nil, err
	}

	s.publish(bus.ChangeData)
	created := cloneInventoryTransaction(transaction)
	return &created, nil
}

func (s *Store) ListDebtTransactions(_ context.Context, customerID string, limit int) ([]domain.DebtTransaction, error) {
	var rows []domain.DebtTransaction
	err := s.kv.View(func(tx kv.Tx) error {
		all, err := readCollection[domain.DebtTransaction](tx, store.ColDebts)
		if err != nil {
			return err
		}
		rows = make([]domain.DebtTransaction, 0, len(all))
		for _, row := range all {
			if customerID != "" && row.CustomerID != customerID {
				continue
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(rows, func(a, b domain.DebtTransaction) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// PayDebt lowers the customer's balance and appends the payment audit row in
// the same transaction, so a payment can never decrement debt without
// leaving a ledger entry. The upper bound (amount ≤ current debt) is the
// caller's responsibility.
func (s *Store) PayDebt(_ context.Context, customerID string, amount int64, staffName string, note string) (*domain.PayDebtResponse, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: payment amount must be positive", store.ErrInvalidInput)
	}

	var resp domain.PayDebtResponse
	err := s.kv.Update(func(tx kv.Tx) error {
		customers, err := readCollection[domain.Customer](tx, store.ColCustomers)
		if err != nil {
			return err
		}
		idx := -1
		for i := range customers {
			if customers[i].ID == customerID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: customer %s", store.ErrNotFound, customerID)
		}

		customers[idx].Debt -= amount
		row := domain.DebtTransaction{
			ID:           xid.New("debt"),
			CustomerID:   customers[idx].ID,
			CustomerName: customers[idx].Name,
			Amount:       amount,
			Type:         domain.DebtTypePayment,
			StaffName:    staffName,
			Note:         note,
			CreatedAt:    time.Now().UTC(),
		}

		debts, err := readCollection[domain.DebtTransaction](tx, store.ColDebts)
		if err != nil {
			return err
		}
		debts = append(debts, row)

		if err := writeCollection(tx, store.ColCustomers, customers); err != nil {
			return err
		}
		if err := writeCollection(tx, store.ColDebts, debts); err != nil {
			return err
		}
		resp = domain.PayDebtResponse{Customer: customers[idx], Transaction: row}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(bus.ChangeData)
	return &resp, nil
}

func cloneOrder(src domain.Order) domain.Order {
	dup := src
	items := make([]domain.OrderLine, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return dup
}

func cloneInventoryTransaction(src domain.InventoryTransaction) domain.InventoryTransaction {
	dup := src
	items := make([]domain.StockLine, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return dup
}
