// Package kvstore implements store.Repository over a kv.Store: each
// collection lives under one key as a JSON array and every mutation is a
// whole-collection read-modify-write. Cross-collection operations (orders,
// stock movements, debt payments) run inside a single kv.Update so their
// writes commit or fail together.
package kvstore

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"warungku/backend/internal/bus"
	"warungku/backend/internal/domain"
	"warungku/backend/internal/kv"
	"warungku/backend/internal/store"
	"warungku/backend/internal/xid"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Store struct {
	kv     kv.Store
	events *bus.Bus
}

// New seeds default data into any collection that has never been written,
// then returns the repository. Seeding happens at most once per empty key.
func New(kvs kv.Store, events *bus.Bus) (*Store, error) {
	s := &Store{kv: kvs, events: events}
	if err := s.seedDefaults(); err != nil {
		return nil, fmt.Errorf("seed defaults: %w", err)
	}
	return s, nil
}

// Events exposes the change bus so observers register with the store
// instance rather than a process-global dispatcher.
func (s *Store) Events() *bus.Bus {
	return s.events
}

func (s *Store) publish(kind bus.Change) {
	if s.events != nil {
		s.events.Publish(kind)
	}
}

func readCollection[T any](tx kv.Tx, name string) ([]T, error) {
	blob, err := tx.Get(name)
	if err != nil {
		return nil, err
	}
	if blob == nil {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal(blob, &items); err != nil {
		return nil, fmt.Errorf("decode collection %s: %w", name, err)
	}
	return items, nil
}

func writeCollection[T any](tx kv.Tx, name string, items []T) error {
	if items == nil {
		items = []T{}
	}
	blob, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode collection %s: %w", name, err)
	}
	return tx.Put(name, blob)
}

// ---- products ----

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	var products []domain.Product
	err := s.kv.View(func(tx kv.Tx) error {
		var err error
		products, err = readCollection[domain.Product](tx, store.ColProducts)
		return err
	})
	if products == nil {
		products = []domain.Product{}
	}
	return products, err
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	var found *domain.Product
	err := s.kv.View(func(tx kv.Tx) error {
		products, err := readCollection[domain.Product](tx, store.ColProducts)
		if err != nil {
			return err
		}
		for i := range products {
			if products[i].ID == id {
				dup := products[i]
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

func (s *Store) SaveProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	product.Code = strings.TrimSpace(product.Code)
	product.Name = strings.TrimSpace(product.Name)
	if product.Code == "" || product.Name == "" {
		return nil, store.ErrInvalidInput
	}

	err := s.kv.Update(func(tx kv.Tx) error {
		products, err := readCollection[domain.Product](tx, store.ColProducts)
		if err != nil {
			return err
		}
		for i := range products {
			if products[i].Code == product.Code && products[i].ID != product.ID {
				return fmt.Errorf("%w: product code %s", store.ErrConflict, product.Code)
			}
		}
		if product.ID == "" {
			product.ID = xid.New("prd")
			products = append(products, product)
		} else {
			replaced := false
			for i := range products {
				if products[i].ID == product.ID {
					// Stock is owned by orders and stock movements; a catalog
					// edit must not change it.
					product.Stock = products[i].Stock
					products[i] = product
					replaced = true
					break
				}
			}
			if !replaced {
				return store.ErrNotFound
			}
		}
		return writeCollection(tx, store.ColProducts, products)
	})
	if err != nil {
		return nil, err
	}

	s.publish(bus.ChangeData)
	return &product, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	err := s.kv.Update(func(tx kv.Tx) error {
		products, err := readCollection[domain.Product](tx, store.ColProducts)
		if err != nil {
			return err
		}
		kept := products[:0]
		found := false
		for _, p := range products {
			if p.ID == id {
				found = true
				continue
			}
			kept = append(kept, p)
		}
		if !found {
			return store.ErrNotFound
		}
		// Orders referencing the product stay as-is; line items keep their
		// own name and price snapshots.
		return writeCollection(tx, store.ColProducts, kept)
	})
	if err != nil {
		return err
	}

	s.publish(bus.ChangeData)
	return nil
}

// ---- categories ----

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	err := s.kv.View(func(tx kv.Tx) error {
		var err error
		categories, err = readCollection[domain.Category](tx, store.ColCategories)
		return err
	})
	if categories == nil {
		categories = []domain.Category{}
	}
	return categories, err
}

func (s *Store) SaveCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return nil, store.ErrInvalidInput
	}

	err := s.kv.Update(func(tx kv.Tx) error {
		categories, err := readCollection[domain.Category](tx, store.ColCategories)
		if err != nil {
			return err
		}
		if category.ID == "" {
			category.ID = xid.New("cat")
			categories = append(categories, category)
		} else {
			replaced := false
			for i := range categories {
				if categories[i].ID == category.ID {
					categories[i] = category
					replaced = true
					break
				}
			}
			if !replaced {
				return store.ErrNotFound
			}
		}
		return writeCollection(tx, store.ColCategories, categories)
	})
	if err != nil {
		return nil, err
	}

	s.publish(bus.ChangeCategories)
	return &category, nil
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	err := s.kv.Update(func(tx kv.Tx) error {
		categories, err := readCollection[domain.Category](tx, store.ColCategories)
		if err != nil {
			return err
		}
		kept := categories[:0]
		found := false
		for _, c := range categories {
			if c.ID == id {
				found = true
				continue
			}
			kept = append(kept, c)
		}
		if !found {
			return store.ErrNotFound
		}
		return writeCollection(tx, store.ColCategories, kept)
	})
	if err != nil {
		return err
	}

	s.publish(bus.ChangeCategories)
	return nil
}

// ---- units ----

func (s *Store) ListUnits(_ context.Context) ([]domain.Unit, error) {
	var units []domain.Unit
	err := s.kv.View(func(tx kv.Tx) error {
		var err error
		units, err = readCollection[domain.Unit](tx, store.ColUnits)
		return err
	})
	if units == nil {
		units = []domain.Unit{}
	}
	return units, err
}

func (s *Store) SaveUnit(_ context.Context, unit domain.Unit) (*domain.Unit, error) {
	unit.Name = strings.TrimSpace(unit.Name)
	if unit.Name == "" {
		return nil, store.ErrInvalidInput
	}

	err := s.kv.Update(func(tx kv.Tx) error {
		units, err := readCollection[domain.Unit](tx, store.ColUnits)
		if err != nil {
			return err
		}
		if unit.ID == "" {
			unit.ID = xid.New("unit")
			units = append(units, unit)
		} else {
			replaced := false
			for i := range units {
				if units[i].ID == unit.ID {
					units[i] = unit
					replaced = true
					break
				}
			}
			if !replaced {
				return store.ErrNotFound
			}
		}
		return writeCollection(tx, store.ColUnits, units)
	})
	if err != nil {
		return nil, err
	}

	s.publish(bus.ChangeUnits)
	return &unit, nil
}

func (s *Store) DeleteUnit(_ context.Context, id string) error {
	err := s.kv.Update(func(tx kv.Tx) error {
		units, err := readCollection[domain.Unit](tx, store.ColUnits)
		if err != nil {
			return err
		}
		kept := units[:0]
		found := false
		for _, u := range units {
			if u.ID == id {
				found = true
				continue
			}
			kept = append(kept, u)
		}
		if !found {
			return store.ErrNotFound
		}
		return writeCollection(tx, store.ColUnits, kept)
	})
	if err != nil {
		return err
	}

	s.publish(bus.ChangeUnits)
	return nil
}

// ---- customers ----

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	var customers []domain.Customer
	err := s.kv.View(func(tx kv.Tx) error {
		var err error
		customers, err = readCollection[domain.Customer](tx, store.ColCustomers)
		return err
	})
	if customers == nil {
		customers = []domain.Customer{}
	}
	return customers, err
}

func (s *Store) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	var found *domain.Customer
	err := s.kv.View(func(tx kv.Tx) error {
		customers, err := readCollection[domain.Customer](tx, store.ColCustomers)
		if err != nil {
			return err
		}
		for i := range customers {
			if customers[i].ID == id {
				dup := customers[i]
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

func (s *Store) SaveCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	customer.Name = strings.TrimSpace(customer.Name)
	if customer.Name == "" {
		return nil, store.ErrInvalidInput
	}

	err := s.kv.Update(func(tx kv.Tx) error {
		customers, err := readCollection[domain.Customer](tx, store.ColCustomers)
		if err != nil {
			return err
		}
		if customer.ID == "" {
			customer.ID = xid.New("cus")
			customers = append(customers, customer)
		} else {
			replaced := false
			for i := range customers {
				if customers[i].ID == customer.ID {
					// Debt is owned by the order/payment flow.
					customer.Debt = customers[i].Debt
					customers[i] = customer
					replaced = true
					break
				}
			}
			if !replaced {
				return store.ErrNotFound
			}
		}
		return writeCollection(tx, store.ColCustomers, customers)
	})
	if err != nil {
		return nil, err
	}

	s.publish(bus.ChangeData)
	return &customer, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	err := s.kv.Update(func(tx kv.Tx) error {
		customers, err := readCollection[domain.Customer](tx, store.ColCustomers)
		if err != nil {
			return err
		}
		kept := customers[:0]
		found := false
		for _, c := range customers {
			if c.ID == id {
				found = true
				continue
			}
			kept = append(kept, c)
		}
		if !found {
			return store.ErrNotFound
		}
		return writeCollection(tx, store.ColCustomers, kept)
	})
	if err != nil {
		return err
	}

	s.publish(bus.ChangeData)
	return nil
}

// ---- users ----

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	var users []domain.UserAccount
	err := s.kv.View(func(tx kv.Tx) error {
		var err error
		users, err = readCollection[domain.UserAccount](tx, store.ColUsers)
		return err
	})
	if users == nil {
		users = []domain.UserAccount{}
	}
	return users, err
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	var found *domain.UserAccount
	err := s.kv.View(func(tx kv.Tx) error {
		users, err := readCollection[domain.UserAccount](tx, store.ColUsers)
		if err != nil {
			return err
		}
		for i := range users {
			if users[i].Username == username {
				dup := users[i]
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

// SaveUser upserts an account. An update with an empty password keeps the
// stored hash so the caller can edit display name or role without knowing
// the password.
func (s *Store) SaveUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" {
		return nil, store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}

	err := s.kv.Update(func(tx kv.Tx) error {
		users, err := readCollection[domain.UserAccount](tx, store.ColUsers)
		if err != nil {
			return err
		}
		for i := range users {
			if users[i].Username == user.Username && users[i].ID != user.ID {
				return fmt.Errorf("%w: username %s", store.ErrConflict, user.Username)
			}
		}
		if user.ID == "" {
			if user.Password == "" {
				return store.ErrInvalidInput
			}
			user.ID = xid.New("usr")
			users = append(users, user)
		} else {
			replaced := false
			for i := range users {
				if users[i].ID == user.ID {
					if user.Password == "" {
						user.Password = users[i].Password
					}
					users[i] = user
					replaced = true
					break
				}
			}
			if !replaced {
				return store.ErrNotFound
			}
		}
		return writeCollection(tx, store.ColUsers, users)
	})
	if err != nil {
		return nil, err
	}

	s.publish(bus.ChangeUsers)
	user.Password = ""
	return &user, nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	err := s.kv.Update(func(tx kv.Tx) error {
		users, err := readCollection[domain.UserAccount](tx, store.ColUsers)
		if err != nil {
			return err
		}
		kept := users[:0]
		found := false
		for _, u := range users {
			if u.ID == id {
				found = true
				continue
			}
			kept = append(kept, u)
		}
		if !found {
			return store.ErrNotFound
		}
		return writeCollection(tx, store.ColUsers, kept)
	})
	if err != nil {
		return err
	}

	s.publish(bus.ChangeUsers)
	return nil
}

// ---- menu config ----

func (s *Store) GetMenuConfig(_ context.Context) ([]domain.MenuConfigItem, error) {
	var items []domain.MenuConfigItem
	err := s.kv.View(func(tx kv.Tx) error {
		var err error
		items, err = readCollection[domain.MenuConfigItem](tx, store.ColMenuConfig)
		return err
	})
	if items == nil {
		items = []domain.MenuConfigItem{}
	}
	return items, err
}

// ReplaceMenuConfig swaps the whole navigation list; item order is the
// display order.
func (s *Store) ReplaceMenuConfig(_ context.Context, items []domain.MenuConfigItem) error {
	for _, item := range items {
		if strings.TrimSpace(item.ViewID) == "" {
			return store.ErrInvalidInput
		}
	}
	err := s.kv.Update(func(tx kv.Tx) error {
		return writeCollection(tx, store.ColMenuConfig, items)
	})
	if err != nil {
		return err
	}

	s.publish(bus.ChangeMenuConfig)
	return nil
}

// ---- settings ----

func readSettings(tx kv.Tx) (domain.Settings, bool, error) {
	blob, err := tx.Get(store.ColSettings)
	if err != nil {
		return domain.Settings{}, false, err
	}
	if blob == nil {
		return domain.Settings{}, false, nil
	}
	var settings domain.Settings
	if err := json.Unmarshal(blob, &settings); err != nil {
		return domain.Settings{}, false, fmt.Errorf("decode settings: %w", err)
	}
	return settings, true, nil
}

func writeSettings(tx kv.Tx, settings domain.Settings) error {
	blob, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return tx.Put(store.ColSettings, blob)
}

func (s *Store) GetSettings(_ context.Context) (domain.Settings, error) {
	var settings domain.Settings
	err := s.kv.View(func(tx kv.Tx) error {
		var err error
		settings, _, err = readSettings(tx)
		return err
	})
	return settings, err
}

func (s *Store) UpdateSettings(_ context.Context, settings domain.Settings) (*domain.Settings, error) {
	if settings.BackupIntervalMinutes < 1 {
		settings.BackupIntervalMinutes = 60
	}
	if settings.ExpiryAlertDays < 1 {
		settings.ExpiryAlertDays = 30
	}

	err := s.kv.Update(func(tx kv.Tx) error {
		current, ok, err := readSettings(tx)
		if err != nil {
			return err
		}
		if ok && settings.LastBackupAt == nil {
			settings.LastBackupAt = current.LastBackupAt
		}
		return writeSettings(tx, settings)
	})
	if err != nil {
		return nil, err
	}

	s.publish(bus.ChangeSettings)
	return &settings, nil
}
