package market

import (
	"coinmarket/internal/database"
	applog "coinmarket/internal/logger"
	"coinmarket/internal/model"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type tickingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type marketSuite struct {
	suite.Suite
	ctx   context.Context
	store *database.Memory
	svc   Service
}

func TestMarket(t *testing.T) {
	suite.Run(t, new(marketSuite))
}

func (ts *marketSuite) SetupTest() {
	ts.ctx = context.Background()
	ts.store = database.NewMemory()
	clock := &tickingClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	ts.svc = Service{Store: ts.store, Logger: applog.Discard(), Clock: clock.Now}
}

func (ts *marketSuite) addMember(email string, role model.Role, coins int64, balance int64) {
	_, err := ts.store.MemberInsert(ts.ctx, model.Member{Email: email, Role: role, Coins: coins, Balance: balance})
	ts.Require().NoError(err)
}

func (ts *marketSuite) member(email string) model.Member {
	m, err := ts.store.MemberFindByEmail(ts.ctx, email)
	ts.Require().NoError(err)
	return m
}

func (ts *marketSuite) addItem(name string, price int64, stock int64) primitive.ObjectID {
	i, err := ts.svc.AddItem(ts.ctx, ItemInput{Name: name, Price: price, Stock: stock})
	ts.Require().NoError(err)
	return i.ID
}

func (ts *marketSuite) item(id primitive.ObjectID) model.MarketItem {
	i, err := ts.store.ItemFindOne(ts.ctx, id)
	ts.Require().NoError(err)
	return i
}

func (ts *marketSuite) request(id primitive.ObjectID) model.PurchaseRequest {
	r, err := ts.store.PurchaseRequestFindOne(ts.ctx, id)
	ts.Require().NoError(err)
	return r
}

func (ts *marketSuite) TestLogin() {
	ts.addMember("admin@example.com", model.RoleAdmin, 0, 0)
	ts.addMember("user1@example.com", "", 0, 0)

	m, err := ts.svc.Login(ts.ctx, "  Admin@Example.com ")
	ts.Require().NoError(err)
	ts.Equal(model.RoleAdmin, m.Role)
	ts.Equal("/admin", m.Role.LandingRoute())

	m, err = ts.svc.Login(ts.ctx, "user1@example.com")
	ts.Require().NoError(err)
	ts.Equal(model.RoleUser, m.Role)
	ts.Equal("/market", m.Role.LandingRoute())

	_, err = ts.svc.Login(ts.ctx, "ghost@example.com")
	ts.ErrorIs(err, ErrNotFound)
	ts.Contains(err.Error(), "email not found")

	_, err = ts.svc.Login(ts.ctx, "   ")
	ts.ErrorIs(err, ErrInvalidEmail)
}

func (ts *marketSuite) TestSeedMembers() {
	ts.addMember("a@x.com", model.RoleUser, 7, 0)

	n, err := ts.svc.SeedMembers(ts.ctx, []model.Member{
		{Email: "A@x.com", Coins: 100},
		{Email: "b@x.com", Role: "boss", Balance: 50},
	})
	ts.Require().NoError(err)
	ts.Equal(1, n)
	ts.Equal(int64(7), ts.member("a@x.com").Coins)
	ts.Equal(model.RoleUser, ts.member("b@x.com").Role)

	_, err = ts.svc.SeedMembers(ts.ctx, []model.Member{{Email: "c@x.com", Coins: -1}})
	ts.ErrorIs(err, ErrInvalidAmount)
}
