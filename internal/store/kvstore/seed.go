package kvstore

import (
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"

	"warungku/backend/internal/domain"
	"warungku/backend/internal/kv"
	"warungku/backend/internal/store"
	"warungku/backend/internal/xid"
)

// seedDefaults writes a starter dataset into each collection that has never
// been persisted. An existing key, even an empty array, is left untouched,
// so seeding happens exactly once per collection.
func (s *Store) seedDefaults() error {
	return s.kv.Update(func(tx kv.Tx) error {
		if err := seedCollection(tx, store.ColProducts, seedProducts); err != nil {
			return err
		}
		if err := seedCollection(tx, store.ColCategories, seedCategories); err != nil {
			return err
		}
		if err := seedCollection(tx, store.ColUnits, seedUnits); err != nil {
			return err
		}
		if err := seedCollection(tx, store.ColCustomers, seedCustomers); err != nil {
			return err
		}
		if err := seedCollection(tx, store.ColUsers, seedUsers); err != nil {
			return err
		}
		if err := seedCollection(tx, store.ColMenuConfig, seedMenuConfig); err != nil {
			return err
		}

		_, ok, err := readSettings(tx)
		if err != nil {
			return err
		}
		if !ok {
			return writeSettings(tx, domain.Settings{
				AutoBackup:            false,
				BackupIntervalMinutes: 60,
				ExpiryAlertDays:       30,
				Theme:                 "light",
				ShopName:              "Warungku",
			})
		}
		return nil
	})
}

func seedCollection[T any](tx kv.Tx, name string, build func() []T) error {
	blob, err := tx.Get(name)
	if err != nil {
		return err
	}
	if blob != nil {
		return nil
	}
	return writeCollection(tx, name, build())
}

func seedProducts() []domain.Product {
	return []domain.Product{
		{ID: xid.New("prd"), Code: "PRD-001", Name: "Beras 5kg", Unit: "sack", Price: 72000, Cost: 65000, Stock: 40, Category: "grocery"},
		{ID: xid.New("prd"), Code: "PRD-002", Name: "Minyak Goreng 1L", Unit: "bottle", Price: 19500, Cost: 16800, Stock: 60, Category: "grocery"},
		{ID: xid.New("prd"), Code: "PRD-003", Name: "Gula Pasir 1kg", Unit: "pack", Price: 17400, Cost: 15200, Stock: 80, Category: "grocery"},
		{ID: xid.New("prd"), Code: "PRD-004", Name: "Mie Instan", Unit: "pcs", Price: 3500, Cost: 2800, Stock: 200, Category: "grocery"},
		{ID: xid.New("prd"), Code: "PRD-005", Name: "Air Mineral 600ml", Unit: "bottle", Price: 3900, Cost: 2900, Stock: 120, Category: "beverage"},
		{ID: xid.New("prd"), Code: "PRD-006", Name: "Kopi Sachet", Unit: "pcs", Price: 2600, Cost: 1900, Stock: 150, Category: "beverage"},
		{ID: xid.New("prd"), Code: "PRD-007", Name: "Sabun Mandi", Unit: "pcs", Price: 7400, Cost: 5600, Stock: 90, Category: "household"},
		{ID: xid.New("prd"), Code: "PRD-008", Name: "Deterjen 800g", Unit: "pack", Price: 21500, Cost: 18000, Stock: 45, Category: "household"},
	}
}

func seedCategories() []domain.Category {
	return []domain.Category{
		{ID: xid.New("cat"), Name: "grocery"},
		{ID: xid.New("cat"), Name: "beverage"},
		{ID: xid.New("cat"), Name: "household"},
	}
}

func seedUnits() []domain.Unit {
	return []domain.Unit{
		{ID: xid.New("unit"), Name: "pcs"},
		{ID: xid.New("unit"), Name: "pack"},
		{ID: xid.New("unit"), Name: "bottle"},
		{ID: xid.New("unit"), Name: "sack"},
		{ID: xid.New("unit"), Name: "kg"},
	}
}

func seedCustomers() []domain.Customer {
	return []domain.Customer{
		{ID: xid.New("cus"), Name: "Ibu Sari", Phone: "0812-0000-0001", Address: "Jl. Melati 3"},
		{ID: xid.New("cus"), Name: "Pak Budi", Phone: "0812-0000-0002", Address: "Jl. Kenanga 12"},
	}
}

// seedUsers builds the initial accounts for a fresh install. Passwords come
// from SEED_ADMIN_PASSWORD / SEED_STAFF_PASSWORD; unset variables fall back
// to well-known dev defaults with a warning.
func seedUsers() []domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[kvstore] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	users := make([]domain.UserAccount, 0, 2)
	for _, u := range []struct {
		username string
		password string
		display  string
		role     string
	}{
		{"admin", adminPwd, "Shop Owner", domain.RoleAdmin},
		{"staff", staffPwd, "Sales Staff", domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[kvstore] failed to hash seed password for %s: %v", u.username, err)
		}
		users = append(users, domain.UserAccount{
			ID:          xid.New("usr"),
			Username:    u.username,
			Password:    string(hash),
			DisplayName: u.display,
			Role:        u.role,
		})
	}
	return users
}

func seedMenuConfig() []domain.MenuConfigItem {
	views := []string{"dashboard", "pos", "products", "customers", "inventory", "debts", "reports", "settings", "users"}
	items := make([]domain.MenuConfigItem, 0, len(views))
	for _, view := range views {
		items = append(items, domain.MenuConfigItem{ViewID: view, Visible: true})
	}
	return items
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
