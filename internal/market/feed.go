package market

import (
	"coinmarket/internal/database"
	"coinmarket/internal/model"
	"context"
	"github.com/pkg/errors"
	"reflect"
)

// watch delivers the result of query once on subscribe and again after every change to collections,
// skipping results equal to the last one sent. The channel is closed when ctx is done.
func watch[T any](
	ctx context.Context, s Service, name string, query func(ctx context.Context) (T, error), collections ...string,
) (<-chan T, error) {
	ctx, cancel := context.WithCancel(ctx)

	changed := make(chan struct{}, 1)
	for _, c := range collections {
		ch, err := s.Store.Watch(ctx, c)
		if err != nil {
			cancel()
			return nil, errors.Wrapf(err, "error watching collection: %s", c)
		}
		go func() {
			for range ch {
				select {
				case changed <- struct{}{}:
				default:
				}
			}
			// a watch that ends on its own takes the feed with it
			cancel()
		}()
	}

	last, err := query(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan T)
	go func() {
		defer close(out)
		defer cancel()
		if !send(ctx, out, last) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-changed:
			}
			next, err := query(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.Logger.Errorf("%s: Error querying snapshot, err: %v", name, err)
				continue
			}
			if reflect.DeepEqual(next, last) {
				continue
			}
			last = next
			if !send(ctx, out, next) {
				return
			}
		}
	}()
	return out, nil
}

func send[T any](ctx context.Context, out chan<- T, v T) bool {
	select {
	case out <- v:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s Service) PriceHistoryFeed(ctx context.Context) (<-chan []model.CoinPrice, error) {
	return watch(ctx, s, "PriceHistoryFeed", s.PriceHistory, database.CollectionCoinPriceHistory)
}

// CurrentPriceFeed delivers a zero CoinPrice until a price is set.
func (s Service) CurrentPriceFeed(ctx context.Context) (<-chan model.CoinPrice, error) {
	return watch(ctx, s, "CurrentPriceFeed", func(ctx context.Context) (model.CoinPrice, error) {
		p, err := s.CurrentPrice(ctx)
		if errors.Is(err, ErrNoPrice) {
			return model.CoinPrice{}, nil
		}
		return p, err
	}, database.CollectionCoin)
}

func (s Service) ItemsFeed(ctx context.Context) (<-chan []model.MarketItem, error) {
	return watch(ctx, s, "ItemsFeed", s.Items, database.CollectionMarketItems)
}

func (s Service) PurchaseRequestsFeed(ctx context.Context, f model.PurchaseRequestFilter) (<-chan []model.PurchaseRequest, error) {
	return watch(ctx, s, "PurchaseRequestsFeed", func(ctx context.Context) ([]model.PurchaseRequest, error) {
		return s.PurchaseRequests(ctx, f)
	}, database.CollectionPurchaseRequests)
}

func (s Service) MemberFeed(ctx context.Context, email string) (<-chan model.Member, error) {
	return watch(ctx, s, "MemberFeed", func(ctx context.Context) (model.Member, error) {
		return s.Member(ctx, email)
	}, database.CollectionMembers)
}
