package market

import (
	"coinmarket/internal/database"
	"coinmarket/internal/model"
	"context"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"strings"
)

type ItemInput struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
	Stock int64  `json:"stock"`
}

func validateItem(name string, price int64, stock int64) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.Wrap(ErrInvalidItem, "name must not be empty")
	case price <= 0:
		return errors.Wrapf(ErrInvalidItem, "price must be positive, got: %d", price)
	case stock < 0:
		return errors.Wrapf(ErrInvalidItem, "stock must not be negative, got: %d", stock)
	}
	return nil
}

func (s Service) AddItem(ctx context.Context, in ItemInput) (model.MarketItem, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateItem(in.Name, in.Price, in.Stock); err != nil {
		return model.MarketItem{}, err
	}
	i := model.MarketItem{Name: in.Name, Price: in.Price, Stock: in.Stock, Timestamp: s.now()}
	id, err := s.Store.ItemInsert(ctx, i)
	if err != nil {
		s.Logger.Errorf("AddItem: Error inserting MarketItem: %+v, err: %v", i, err)
		return model.MarketItem{}, err
	}
	i.ID = id
	s.Logger.Infof("AddItem: Added Item: %s, ID: %s", i.Name, id.Hex())
	return i, nil
}

// UpdateItem applies the non-nil fields of p and refreshes the item timestamp.
func (s Service) UpdateItem(ctx context.Context, itemID primitive.ObjectID, p model.ItemPatch) (model.MarketItem, error) {
	if p.Empty() {
		return model.MarketItem{}, errors.Wrap(ErrInvalidItem, "nothing to update")
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		p.Name = &name
	}
	var i model.MarketItem
	err := s.runTx(ctx, "UpdateItem", func(ctx context.Context) error {
		var err error
		i, err = s.findItem(ctx, itemID)
		if err != nil {
			return err
		}
		i.UpdateWith(p, s.now().Time())
		if err = validateItem(i.Name, i.Price, i.Stock); err != nil {
			return err
		}
		if err = s.Store.ItemUpdate(ctx, i); err != nil {
			return err
		}
		i.Version++
		return nil
	})
	if err != nil {
		s.Logger.Debugf("UpdateItem: Update of ItemID: %s failed, err: %v", itemID.Hex(), err)
		return model.MarketItem{}, err
	}
	s.Logger.Infof("UpdateItem: Updated Item: %s, ID: %s", i.Name, itemID.Hex())
	return i, nil
}

func (s Service) DeleteItem(ctx context.Context, itemID primitive.ObjectID) error {
	err := s.Store.ItemDelete(ctx, itemID)
	if database.IsNotFound(err) {
		return errors.Wrapf(ErrNotFound, "item not found, ID: %s", itemID.Hex())
	}
	if err != nil {
		s.Logger.Errorf("DeleteItem: Error deleting ItemID: %s, err: %v", itemID.Hex(), err)
		return err
	}
	s.Logger.Infof("DeleteItem: Deleted ItemID: %s", itemID.Hex())
	return nil
}

func (s Service) Items(ctx context.Context) ([]model.MarketItem, error) {
	return s.Store.ItemsFindAll(ctx)
}

func (s Service) Item(ctx context.Context, itemID primitive.ObjectID) (model.MarketItem, error) {
	return s.findItem(ctx, itemID)
}
