package market

import (
	"coinmarket/internal/database"
	"coinmarket/internal/model"
	"context"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"time"
)

// Store is the document store the marketplace runs on, implemented by database.Database and database.Memory.
type Store interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	Watch(ctx context.Context, collection string) (<-chan struct{}, error)

	MemberInsert(ctx context.Context, m model.Member) (primitive.ObjectID, error)
	MemberFindByEmail(ctx context.Context, email string) (model.Member, error)
	MembersFindByEmailPrefix(ctx context.Context, prefix string) ([]model.Member, error)
	MemberUpdateHoldings(ctx context.Context, m model.Member) error

	ItemInsert(ctx context.Context, i model.MarketItem) (primitive.ObjectID, error)
	ItemFindOne(ctx context.Context, itemID primitive.ObjectID) (model.MarketItem, error)
	ItemsFindAll(ctx context.Context) ([]model.MarketItem, error)
	ItemUpdate(ctx context.Context, i model.MarketItem) error
	ItemDelete(ctx context.Context, itemID primitive.ObjectID) error

	PurchaseRequestInsert(ctx context.Context, r model.PurchaseRequest) (primitive.ObjectID, error)
	PurchaseRequestFindOne(ctx context.Context, requestID primitive.ObjectID) (model.PurchaseRequest, error)
	PurchaseRequestsFind(ctx context.Context, f model.PurchaseRequestFilter) ([]model.PurchaseRequest, error)
	PurchaseRequestSettle(ctx context.Context, requestID primitive.ObjectID, status model.PurchaseStatus, at primitive.DateTime) error

	CoinPriceHistoryInsert(ctx context.Context, p model.CoinPrice) (primitive.ObjectID, error)
	CoinPriceHistoryFindAll(ctx context.Context) ([]model.CoinPrice, error)
	CurrentPriceUpsert(ctx context.Context, p model.CoinPrice) error
	CurrentPriceFind(ctx context.Context) (model.CoinPrice, error)

	SellLogInsert(ctx context.Context, l model.SellLog) (primitive.ObjectID, error)
	SellLogsFindByEmail(ctx context.Context, email string) ([]model.SellLog, error)
}

var (
	ErrInvalidEmail        = errors.New("invalid email")
	ErrNotFound            = errors.New("not found")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidItem         = errors.New("invalid item")
	ErrInsufficientCoins   = errors.New("insufficient coins")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrOutOfStock          = errors.New("out of stock")
	ErrNoPrice             = errors.New("coin price has not been set")
	ErrAlreadySettled      = errors.New("purchase request already settled")
)

// Recorder receives domain events for metrics.
type Recorder interface {
	PriceSet(price int64)
	CoinsSold(amount int64, earned int64)
	CoinsGranted(delta int64, members int)
	PurchaseSubmitted(totalPrice int64)
	PurchaseSettled(status model.PurchaseStatus)
}

type nopRecorder struct{}

func (nopRecorder) PriceSet(int64)                       {}
func (nopRecorder) CoinsSold(int64, int64)               {}
func (nopRecorder) CoinsGranted(int64, int)              {}
func (nopRecorder) PurchaseSubmitted(int64)              {}
func (nopRecorder) PurchaseSettled(model.PurchaseStatus) {}

type logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

const maxTxAttempts = 3

type Service struct {
	Store   Store
	Logger  logger
	Metrics Recorder
	Clock   func() time.Time
}

func (s Service) now() primitive.DateTime {
	if s.Clock != nil {
		return primitive.NewDateTimeFromTime(s.Clock())
	}
	return primitive.NewDateTimeFromTime(time.Now())
}

func (s Service) metrics() Recorder {
	if s.Metrics == nil {
		return nopRecorder{}
	}
	return s.Metrics
}

// runTx runs fn as one unit of work and starts over when a guarded update lost a version race.
// fn must not keep state between attempts.
func (s Service) runTx(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.Store.WithTransaction(ctx, fn)
		if !errors.Is(err, database.ErrVersionConflict) {
			return err
		}
		s.Logger.Debugf("%s: Version conflict on attempt %d of %d, err: %v", name, attempt, maxTxAttempts, err)
	}
	return err
}

// findMember maps a store miss to ErrNotFound.
func (s Service) findMember(ctx context.Context, email string) (model.Member, error) {
	m, err := s.Store.MemberFindByEmail(ctx, email)
	if database.IsNotFound(err) {
		return m, errors.Wrapf(ErrNotFound, "member not found, email: %s", email)
	}
	return m, err
}

func (s Service) findItem(ctx context.Context, itemID primitive.ObjectID) (model.MarketItem, error) {
	i, err := s.Store.ItemFindOne(ctx, itemID)
	if database.IsNotFound(err) {
		return i, errors.Wrapf(ErrNotFound, "item not found, ID: %s", itemID.Hex())
	}
	return i, err
}

func (s Service) findRequest(ctx context.Context, requestID primitive.ObjectID) (model.PurchaseRequest, error) {
	r, err := s.Store.PurchaseRequestFindOne(ctx, requestID)
	if database.IsNotFound(err) {
		return r, errors.Wrapf(ErrNotFound, "purchase request not found, ID: %s", requestID.Hex())
	}
	return r, err
}

func (s Service) Member(ctx context.Context, email string) (model.Member, error) {
	return s.findMember(ctx, model.NormalizeEmail(email))
}

// SeedMembers inserts the members that do not exist yet. Existing members are left untouched.
func (s Service) SeedMembers(ctx context.Context, ms []model.Member) (int, error) {
	inserted := 0
	for _, m := range ms {
		m.Email = model.NormalizeEmail(m.Email)
		if m.Email == "" {
			return inserted, errors.Wrap(ErrInvalidEmail, "seed member without email")
		}
		m.Role = m.Role.Normalize()
		if m.Coins < 0 || m.Balance < 0 {
			return inserted, errors.Wrapf(ErrInvalidAmount, "seed member with negative holdings, email: %s", m.Email)
		}
		m.LastModified = s.now()
		if _, err := s.Store.MemberInsert(ctx, m); err != nil {
			if database.IsDuplicateKey(err) {
				s.Logger.Debugf("SeedMembers: Member already exists, email: %s", m.Email)
				continue
			}
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}
