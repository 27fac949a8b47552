package market

import (
	"coinmarket/internal/model"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("feed closed")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot received")
	}
	var zero T
	return zero
}

func assertClosed[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
}

func (ts *marketSuite) TestItemsFeed() {
	ctx, cancel := context.WithCancel(ts.ctx)
	feed, err := ts.svc.ItemsFeed(ctx)
	ts.Require().NoError(err)

	ts.Empty(receive(ts.T(), feed))

	id := ts.addItem("Sticker", 500, 3)
	is := receive(ts.T(), feed)
	ts.Require().Len(is, 1)
	ts.Equal(id, is[0].ID)

	stock := int64(9)
	_, err = ts.svc.UpdateItem(ts.ctx, id, model.ItemPatch{Stock: &stock})
	ts.Require().NoError(err)
	is = receive(ts.T(), feed)
	ts.Equal(int64(9), is[0].Stock)

	cancel()
	assertClosed(ts.T(), feed)
}

func (ts *marketSuite) TestCurrentPriceFeed() {
	ctx, cancel := context.WithCancel(ts.ctx)
	defer cancel()
	feed, err := ts.svc.CurrentPriceFeed(ctx)
	ts.Require().NoError(err)

	ts.Equal(model.CoinPrice{}, receive(ts.T(), feed))

	_, err = ts.svc.SetPrice(ts.ctx, 42)
	ts.Require().NoError(err)
	ts.Equal(int64(42), receive(ts.T(), feed).Price)
}

func (ts *marketSuite) TestPriceHistoryFeed() {
	ctx, cancel := context.WithCancel(ts.ctx)
	defer cancel()
	_, err := ts.svc.SetPrice(ts.ctx, 10)
	ts.Require().NoError(err)

	feed, err := ts.svc.PriceHistoryFeed(ctx)
	ts.Require().NoError(err)
	ts.Len(receive(ts.T(), feed), 1)

	_, err = ts.svc.SetPrice(ts.ctx, 10)
	ts.Require().NoError(err)
	ts.Len(receive(ts.T(), feed), 2)
}

func (ts *marketSuite) TestMemberFeedSkipsUnchangedSnapshots() {
	ts.addMember("a@x.com", "", 5, 0)
	ts.addMember("b@x.com", "", 5, 0)
	ctx, cancel := context.WithCancel(ts.ctx)
	defer cancel()

	feed, err := ts.svc.MemberFeed(ctx, "a@x.com")
	ts.Require().NoError(err)
	ts.Equal(int64(5), receive(ts.T(), feed).Coins)

	// a change to another member leaves a@x.com's snapshot as it was
	_, err = ts.svc.GrantCoins(ts.ctx, CoinGrant{Email: "b@x.com", Delta: 1})
	ts.Require().NoError(err)
	select {
	case m := <-feed:
		ts.Failf("unexpected snapshot", "%+v", m)
	case <-time.After(50 * time.Millisecond):
	}

	_, err = ts.svc.GrantCoins(ts.ctx, CoinGrant{Email: "a@x.com", Delta: 2})
	ts.Require().NoError(err)
	ts.Equal(int64(7), receive(ts.T(), feed).Coins)
}

func (ts *marketSuite) TestMemberFeedUnknownMember() {
	_, err := ts.svc.MemberFeed(ts.ctx, "ghost@example.com")
	ts.ErrorIs(err, ErrNotFound)
}

func (ts *marketSuite) TestPurchaseRequestsFeedFiltered() {
	ts.addMember("a@x.com", "", 0, 1000)
	ts.addMember("b@x.com", "", 0, 1000)
	itemID := ts.addItem("Sticker", 100, 5)
	ctx, cancel := context.WithCancel(ts.ctx)
	defer cancel()

	feed, err := ts.svc.PurchaseRequestsFeed(ctx, model.PurchaseRequestFilter{UserEmail: "a@x.com"})
	ts.Require().NoError(err)
	ts.Empty(receive(ts.T(), feed))

	r, err := ts.svc.SubmitPurchase(ts.ctx, "a@x.com", itemID)
	ts.Require().NoError(err)
	rs := receive(ts.T(), feed)
	ts.Require().Len(rs, 1)
	ts.Equal(r.ID, rs[0].ID)
}

type memCursor struct {
	mu       sync.Mutex
	lastSeen string
	marks    int
}

func (c *memCursor) LastSeen(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen, nil
}

func (c *memCursor) MarkSeen(_ context.Context, requestID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = requestID
	c.marks++
	return nil
}

func (ts *marketSuite) TestPendingRequestsFeed() {
	ts.addMember("a@x.com", "", 0, 1000)
	itemID := ts.addItem("Sticker", 100, 5)
	cursor := &memCursor{}
	ctx, cancel := context.WithCancel(ts.ctx)

	feed, err := ts.svc.PendingRequestsFeed(ctx, cursor)
	ts.Require().NoError(err)
	snap := receive(ts.T(), feed)
	ts.Empty(snap.Requests)
	ts.Nil(snap.Notify)

	first, err := ts.svc.SubmitPurchase(ts.ctx, "a@x.com", itemID)
	ts.Require().NoError(err)
	snap = receive(ts.T(), feed)
	ts.Require().Len(snap.Requests, 1)
	ts.Require().NotNil(snap.Notify)
	ts.Equal(first.ID, snap.Notify.ID)

	second, err := ts.svc.SubmitPurchase(ts.ctx, "a@x.com", itemID)
	ts.Require().NoError(err)
	snap = receive(ts.T(), feed)
	ts.Equal([]primitive.ObjectID{second.ID, first.ID}, ids(snap.Requests))
	ts.Require().NotNil(snap.Notify)
	ts.Equal(second.ID, snap.Notify.ID)

	// the newest is unchanged after settling the older one
	_, err = ts.svc.Approve(ts.ctx, first.ID)
	ts.Require().NoError(err)
	snap = receive(ts.T(), feed)
	ts.Equal([]primitive.ObjectID{second.ID}, ids(snap.Requests))
	ts.Nil(snap.Notify)

	cancel()
	assertClosed(ts.T(), feed)
	ts.Equal(second.ID.Hex(), cursor.lastSeen)
	ts.Equal(2, cursor.marks)

	// a new subscription resumes from the cursor
	ctx, cancel = context.WithCancel(ts.ctx)
	defer cancel()
	feed, err = ts.svc.PendingRequestsFeed(ctx, cursor)
	ts.Require().NoError(err)
	snap = receive(ts.T(), feed)
	ts.Len(snap.Requests, 1)
	ts.Nil(snap.Notify)
}
