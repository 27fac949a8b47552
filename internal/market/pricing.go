package market

import (
	"coinmarket/internal/database"
	"coinmarket/internal/model"
	"context"
	"github.com/pkg/errors"
)

// SetPrice appends a history entry and moves the current price, both or neither.
func (s Service) SetPrice(ctx context.Context, price int64) (model.CoinPrice, error) {
	if price <= 0 {
		return model.CoinPrice{}, errors.Wrapf(ErrInvalidAmount, "price must be positive, got: %d", price)
	}
	var p model.CoinPrice
	err := s.runTx(ctx, "SetPrice", func(ctx context.Context) error {
		p = model.CoinPrice{Price: price, Timestamp: s.now()}
		id, err := s.Store.CoinPriceHistoryInsert(ctx, p)
		if err != nil {
			return err
		}
		p.ID = id
		return s.Store.CurrentPriceUpsert(ctx, p)
	})
	if err != nil {
		s.Logger.Errorf("SetPrice: Error setting coin price: %d, err: %v", price, err)
		return model.CoinPrice{}, err
	}
	s.metrics().PriceSet(price)
	s.Logger.Infof("SetPrice: Coin price set to %d", price)
	return p, nil
}

// PriceHistory returns every price ever set, oldest first.
func (s Service) PriceHistory(ctx context.Context) ([]model.CoinPrice, error) {
	return s.Store.CoinPriceHistoryFindAll(ctx)
}

func (s Service) CurrentPrice(ctx context.Context) (model.CoinPrice, error) {
	p, err := s.Store.CurrentPriceFind(ctx)
	if database.IsNotFound(err) {
		return p, ErrNoPrice
	}
	return p, err
}
