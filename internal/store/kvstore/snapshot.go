package kvstore

import (
	"context"
	"time"

	"warungku/backend/internal/bus"
	"warungku/backend/internal/domain"
	"warungku/backend/internal/kv"
	"warungku/backend/internal/store"
)

// ExportSnapshot reads every collection in one consistent view and bundles
// it into the backup document. Collections come out non-nil so the exported
// JSON always carries an array per collection.
func (s *Store) ExportSnapshot(_ context.Context) (*domain.Snapshot, error) {
	snapshot := domain.Snapshot{ExportedAt: time.Now().UTC()}
	err := s.kv.View(func(tx kv.Tx) error {
		var err error
		if snapshot.Products, err = readCollection[domain.Product](tx, store.ColProducts); err != nil {
			return err
		}
		if snapshot.Categories, err = readCollection[domain.Category](tx, store.ColCategories); err != nil {
			return err
		}
		if snapshot.Units, err = readCollection[domain.Unit](tx, store.ColUnits); err != nil {
			return err
		}
		if snapshot.Customers, err = readCollection[domain.Customer](tx, store.ColCustomers); err != nil {
			return err
		}
		if snapshot.Orders, err = readCollection[domain.Order](tx, store.ColOrders); err != nil {
			return err
		}
		if snapshot.InventoryTransactions, err = readCollection[domain.InventoryTransaction](tx, store.ColInventory); err != nil {
			return err
		}
		if snapshot.DebtTransactions, err = readCollection[domain.DebtTransaction](tx, store.ColDebts); err != nil {
			return err
		}
		if snapshot.Users, err = readCollection[domain.UserAccount](tx, store.ColUsers); err != nil {
			return err
		}
		if snapshot.MenuConfig, err = readCollection[domain.MenuConfigItem](tx, store.ColMenuConfig); err != nil {
			return err
		}
		snapshot.Settings, _, err = readSettings(tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if snapshot.Products == nil {
		snapshot.Products = []domain.Product{}
	}
	if snapshot.Categories == nil {
		snapshot.Categories = []domain.Category{}
	}
	if snapshot.Units == nil {
		snapshot.Units = []domain.Unit{}
	}
	if snapshot.Customers == nil {
		snapshot.Customers = []domain.Customer{}
	}
	if snapshot.Orders == nil {
		snapshot.Orders = []domain.Order{}
	}
	if snapshot.InventoryTransactions == nil {
		snapshot.InventoryTransactions = []domain.InventoryTransaction{}
	}
	if snapshot.DebtTransactions == nil {
		snapshot.DebtTransactions = []domain.DebtTransaction{}
	}
	if snapshot.Users == nil {
		snapshot.Users = []domain.UserAccount{}
	}
	if snapshot.MenuConfig == nil {
		snapshot.MenuConfig = []domain.MenuConfigItem{}
	}

	return &snapshot, nil
}

// ImportSnapshot replaces every collection wholesale with the document's
// contents in one transaction. There is no merge and no per-entity
// validation beyond the document having decoded at all; a restore is an
// all-or-nothing swap.
func (s *Store) ImportSnapshot(_ context.Context, snapshot domain.Snapshot) error {
	err := s.kv.Update(func(tx kv.Tx) error {
		if err := writeCollection(tx, store.ColProducts, snapshot.Products); err != nil {
			return err
		}
		if err := writeCollection(tx, store.ColCategories, snapshot.Categories); err != nil {
			return err
		}
		if err := writeCollection(tx, store.ColUnits, snapshot.Units); err != nil {
			return err
		}
		if err := writeCollection(tx, store.ColCustomers, snapshot.Customers); err != nil {
			return err
		}
		if err := writeCollection(tx, store.ColOrders, snapshot.Orders); err != nil {
			return err
		}
		if err := writeCollection(tx, store.ColInventory, snapshot.InventoryTransactions); err != nil {
			return err
		}
		if err := writeCollection(tx, store.ColDebts, snapshot.DebtTransactions); err != nil {
			return err
		}
		if err := writeCollection(tx, store.ColUsers, snapshot.Users); err != nil {
			return err
		}
		if err := writeCollection(tx, store.ColMenuConfig, snapshot.MenuConfig); err != nil {
			return err
		}
		return writeSettings(tx, snapshot.Settings)
	})
	if err != nil {
		return err
	}

	for _, kind := range []bus.Change{
		bus.ChangeData,
		bus.ChangeCategories,
		bus.ChangeUnits,
		bus.ChangeUsers,
		bus.ChangeMenuConfig,
		bus.ChangeSettings,
	} {
		s.publish(kind)
	}
	return nil
}
