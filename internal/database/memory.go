package database

import (
	"coinmarket/internal/model"
	"context"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"sort"
	"strings"
	"sync"
)

type memoryData struct {
	members      []model.Member
	items        []model.MarketItem
	requests     []model.PurchaseRequest
	history      []model.CoinPrice
	currentPrice *model.CoinPrice
	sellLogs     []model.SellLog
}

func (d memoryData) clone() memoryData {
	c := memoryData{
		members:  append([]model.Member(nil), d.members...),
		items:    append([]model.MarketItem(nil), d.items...),
		requests: append([]model.PurchaseRequest(nil), d.requests...),
		history:  append([]model.CoinPrice(nil), d.history...),
		sellLogs: append([]model.SellLog(nil), d.sellLogs...),
	}
	if d.currentPrice != nil {
		p := *d.currentPrice
		c.currentPrice = &p
	}
	return c
}

type memoryTx struct {
	changed map[string]struct{}
}

type memoryTxKey struct{}

// Memory keeps every collection in process memory and behaves like Database.
// Operations and transactions are serialized. A transaction that fails is rolled back,
// and watchers only hear about a transaction's writes once it commits.
// Transactions must not be nested.
type Memory struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data memoryData
	tx   *memoryTx

	watchMu  sync.Mutex
	watchers map[string]map[chan struct{}]struct{}
}

func NewMemory() *Memory {
	return &Memory{watchers: map[string]map[chan struct{}]struct{}{}}
}

// lock serializes the caller with running transactions unless ctx belongs to the running transaction.
func (m *Memory) lock(ctx context.Context) (unlock func()) {
	if tx, ok := ctx.Value(memoryTxKey{}).(*memoryTx); ok {
		m.mu.Lock()
		if m.tx == tx {
			return m.mu.Unlock
		}
		m.mu.Unlock()
	}
	m.txMu.Lock()
	m.mu.Lock()
	return func() {
		m.mu.Unlock()
		m.txMu.Unlock()
	}
}

func (m *Memory) read(ctx context.Context, fn func(d *memoryData) error) error {
	unlock := m.lock(ctx)
	defer unlock()
	return fn(&m.data)
}

func (m *Memory) write(ctx context.Context, collection string, fn func(d *memoryData) error) error {
	unlock := m.lock(ctx)
	err := fn(&m.data)
	inTx := m.tx != nil
	if err == nil && inTx {
		m.tx.changed[collection] = struct{}{}
	}
	unlock()
	if err == nil && !inTx {
		m.notify(collection)
	}
	return err
}

func (m *Memory) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := &memoryTx{changed: map[string]struct{}{}}
	if err := m.runTx(ctx, tx, fn); err != nil {
		return err
	}
	for c := range tx.changed {
		m.notify(c)
	}
	return nil
}

func (m *Memory) runTx(ctx context.Context, tx *memoryTx, fn func(ctx context.Context) error) (err error) {
	m.mu.Lock()
	snapshot := m.data.clone()
	m.tx = tx
	m.mu.Unlock()

	committed := false
	defer func() {
		m.mu.Lock()
		m.tx = nil
		if !committed {
			m.data = snapshot
		}
		m.mu.Unlock()
	}()

	err = fn(context.WithValue(ctx, memoryTxKey{}, tx))
	committed = err == nil
	return err
}

func (m *Memory) Watch(ctx context.Context, collection string) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	m.watchMu.Lock()
	if m.watchers[collection] == nil {
		m.watchers[collection] = map[chan struct{}]struct{}{}
	}
	m.watchers[collection][ch] = struct{}{}
	m.watchMu.Unlock()

	go func() {
		<-ctx.Done()
		m.watchMu.Lock()
		delete(m.watchers[collection], ch)
		close(ch)
		m.watchMu.Unlock()
	}()
	return ch, nil
}

func (m *Memory) notify(collection string) {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	for ch := range m.watchers[collection] {
		signal(ch)
	}
}

func (m *Memory) MemberInsert(ctx context.Context, mb model.Member) (primitive.ObjectID, error) {
	if mb.ID.IsZero() {
		mb.ID = primitive.NewObjectID()
	}
	err := m.write(ctx, CollectionMembers, func(d *memoryData) error {
		for _, e := range d.members {
			if e.Email == mb.Email {
				return errors.Wrapf(ErrDuplicateKey, "Member already exists, email: %s", mb.Email)
			}
		}
		d.members = append(d.members, mb)
		return nil
	})
	if err != nil {
		return primitive.NilObjectID, err
	}
	return mb.ID, nil
}

func (m *Memory) MemberFindByEmail(ctx context.Context, email string) (model.Member, error) {
	var mb model.Member
	err := m.read(ctx, func(d *memoryData) error {
		for _, e := range d.members {
			if e.Email == email {
				mb = e
				return nil
			}
		}
		return errors.Wrapf(mongo.ErrNoDocuments, "error finding Member with email: %s", email)
	})
	return mb, err
}

func (m *Memory) MembersFindByEmailPrefix(ctx context.Context, prefix string) ([]model.Member, error) {
	ms := []model.Member{}
	err := m.read(ctx, func(d *memoryData) error {
		for _, e := range d.members {
			if strings.HasPrefix(e.Email, prefix) {
				ms = append(ms, e)
			}
		}
		return nil
	})
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].Email < ms[j].Email })
	return ms, err
}

func (m *Memory) MemberUpdateHoldings(ctx context.Context, mb model.Member) error {
	return m.write(ctx, CollectionMembers, func(d *memoryData) error {
		for i, e := range d.members {
			if e.ID != mb.ID {
				continue
			}
			if e.Version != mb.Version {
				break
			}
			e.Coins = mb.Coins
			e.Balance = mb.Balance
			e.LastModified = mb.LastModified
			e.Version++
			d.members[i] = e
			return nil
		}
		return errors.Wrapf(ErrVersionConflict, "Member not updated, email: %s, version: %d", mb.Email, mb.Version)
	})
}

func (m *Memory) ItemInsert(ctx context.Context, i model.MarketItem) (primitive.ObjectID, error) {
	if i.ID.IsZero() {
		i.ID = primitive.NewObjectID()
	}
	err := m.write(ctx, CollectionMarketItems, func(d *memoryData) error {
		d.items = append(d.items, i)
		return nil
	})
	return i.ID, err
}

func (m *Memory) ItemFindOne(ctx context.Context, itemID primitive.ObjectID) (model.MarketItem, error) {
	var i model.MarketItem
	err := m.read(ctx, func(d *memoryData) error {
		for _, e := range d.items {
			if e.ID == itemID {
				i = e
				return nil
			}
		}
		return errors.Wrapf(mongo.ErrNoDocuments, "error finding MarketItem with ID: %s", itemID.Hex())
	})
	return i, err
}

func (m *Memory) ItemsFindAll(ctx context.Context) ([]model.MarketItem, error) {
	var is []model.MarketItem
	err := m.read(ctx, func(d *memoryData) error {
		is = append([]model.MarketItem{}, d.items...)
		return nil
	})
	sort.SliceStable(is, func(a, b int) bool { return is[a].Timestamp < is[b].Timestamp })
	return is, err
}

func (m *Memory) ItemUpdate(ctx context.Context, i model.MarketItem) error {
	return m.write(ctx, CollectionMarketItems, func(d *memoryData) error {
		for idx, e := range d.items {
			if e.ID != i.ID {
				continue
			}
			if e.Version != i.Version {
				break
			}
			i.Version++
			d.items[idx] = i
			return nil
		}
		return errors.Wrapf(ErrVersionConflict, "MarketItem not updated, ID: %s, version: %d", i.ID.Hex(), i.Version)
	})
}

func (m *Memory) ItemDelete(ctx context.Context, itemID primitive.ObjectID) error {
	return m.write(ctx, CollectionMarketItems, func(d *memoryData) error {
		for idx, e := range d.items {
			if e.ID == itemID {
				d.items = append(d.items[:idx:idx], d.items[idx+1:]...)
				return nil
			}
		}
		return errors.Wrapf(mongo.ErrNoDocuments, "MarketItem not deleted, ID: %s", itemID.Hex())
	})
}

func (m *Memory) PurchaseRequestInsert(ctx context.Context, r model.PurchaseRequest) (primitive.ObjectID, error) {
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	err := m.write(ctx, CollectionPurchaseRequests, func(d *memoryData) error {
		d.requests = append(d.requests, r)
		return nil
	})
	return r.ID, err
}

func (m *Memory) PurchaseRequestFindOne(ctx context.Context, requestID primitive.ObjectID) (model.PurchaseRequest, error) {
	var r model.PurchaseRequest
	err := m.read(ctx, func(d *memoryData) error {
		for _, e := range d.requests {
			if e.ID == requestID {
				r = e
				return nil
			}
		}
		return errors.Wrapf(mongo.ErrNoDocuments, "error finding PurchaseRequest with ID: %s", requestID.Hex())
	})
	return r, err
}

func (m *Memory) PurchaseRequestsFind(ctx context.Context, f model.PurchaseRequestFilter) ([]model.PurchaseRequest, error) {
	rs := []model.PurchaseRequest{}
	err := m.read(ctx, func(d *memoryData) error {
		// newest inserted first, so equal timestamps keep the order Mongo gives by _id
		for i := len(d.requests) - 1; i >= 0; i-- {
			r := d.requests[i]
			if f.Status != "" && r.Status != f.Status {
				continue
			}
			if f.UserEmail != "" && r.UserEmail != f.UserEmail {
				continue
			}
			rs = append(rs, r)
		}
		return nil
	})
	sort.SliceStable(rs, func(a, b int) bool { return rs[a].Timestamp > rs[b].Timestamp })
	return rs, err
}

func (m *Memory) PurchaseRequestSettle(
	ctx context.Context, requestID primitive.ObjectID, status model.PurchaseStatus, at primitive.DateTime,
) error {
	if status != model.StatusApproved && status != model.StatusRejected {
		return errors.Errorf("invalid settlement status: %s", status)
	}
	return m.write(ctx, CollectionPurchaseRequests, func(d *memoryData) error {
		for i, e := range d.requests {
			if e.ID != requestID || !e.Pending() {
				continue
			}
			e.Status = status
			if status == model.StatusApproved {
				e.ApprovedAt = &at
			} else {
				e.RejectedAt = &at
			}
			d.requests[i] = e
			return nil
		}
		return errors.Wrapf(ErrNoDocumentsModified, "PurchaseRequest not settled, ID: %s, status: %s",
			requestID.Hex(), status)
	})
}

func (m *Memory) CoinPriceHistoryInsert(ctx context.Context, p model.CoinPrice) (primitive.ObjectID, error) {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	err := m.write(ctx, CollectionCoinPriceHistory, func(d *memoryData) error {
		d.history = append(d.history, p)
		return nil
	})
	return p.ID, err
}

func (m *Memory) CoinPriceHistoryFindAll(ctx context.Context) ([]model.CoinPrice, error) {
	var ps []model.CoinPrice
	err := m.read(ctx, func(d *memoryData) error {
		ps = append([]model.CoinPrice{}, d.history...)
		return nil
	})
	sort.SliceStable(ps, func(a, b int) bool { return ps[a].Timestamp < ps[b].Timestamp })
	return ps, err
}

func (m *Memory) CurrentPriceUpsert(ctx context.Context, p model.CoinPrice) error {
	return m.write(ctx, CollectionCoin, func(d *memoryData) error {
		d.currentPrice = &model.CoinPrice{Price: p.Price, Timestamp: p.Timestamp}
		return nil
	})
}

func (m *Memory) CurrentPriceFind(ctx context.Context) (model.CoinPrice, error) {
	var p model.CoinPrice
	err := m.read(ctx, func(d *memoryData) error {
		if d.currentPrice == nil {
			return errors.Wrap(mongo.ErrNoDocuments, "error finding current price")
		}
		p = *d.currentPrice
		return nil
	})
	return p, err
}

func (m *Memory) SellLogInsert(ctx context.Context, l model.SellLog) (primitive.ObjectID, error) {
	if l.ID.IsZero() {
		l.ID = primitive.NewObjectID()
	}
	err := m.write(ctx, CollectionSellLogs, func(d *memoryData) error {
		d.sellLogs = append(d.sellLogs, l)
		return nil
	})
	return l.ID, err
}

func (m *Memory) SellLogsFindByEmail(ctx context.Context, email string) ([]model.SellLog, error) {
	ls := []model.SellLog{}
	err := m.read(ctx, func(d *memoryData) error {
		for i := len(d.sellLogs) - 1; i >= 0; i-- {
			if d.sellLogs[i].Email == email {
				ls = append(ls, d.sellLogs[i])
			}
		}
		return nil
	})
	sort.SliceStable(ls, func(a, b int) bool { return ls[a].Timestamp > ls[b].Timestamp })
	return ls, err
}
