package market

import (
	"coinmarket/internal/model"
	"sync"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (ts *marketSuite) TestSubmitPurchase() {
	ts.addMember("user1@example.com", "", 0, 1000)
	itemID := ts.addItem("Sticker", 500, 3)

	r, err := ts.svc.SubmitPurchase(ts.ctx, "user1@example.com", itemID)
	ts.Require().NoError(err)
	ts.Equal(model.StatusPending, r.Status)
	ts.Equal(itemID, r.ItemID)
	ts.Equal("Sticker", r.ItemName)
	ts.Equal("user1@example.com", r.UserEmail)
	ts.Equal(int64(1), r.Quantity)
	ts.Equal(int64(500), r.TotalPrice)

	ts.Equal(int64(500), ts.member("user1@example.com").Balance)
	ts.Equal(int64(3), ts.item(itemID).Stock)
	ts.Equal(r, ts.request(r.ID))
}

func (ts *marketSuite) TestSubmitPurchaseFailures() {
	ts.addMember("user1@example.com", "", 0, 400)
	sticker := ts.addItem("Sticker", 500, 3)
	mug := ts.addItem("Mug", 100, 0)

	_, err := ts.svc.SubmitPurchase(ts.ctx, "user1@example.com", mug)
	ts.ErrorIs(err, ErrOutOfStock)
	_, err = ts.svc.SubmitPurchase(ts.ctx, "user1@example.com", sticker)
	ts.ErrorIs(err, ErrInsufficientBalance)
	_, err = ts.svc.SubmitPurchase(ts.ctx, "user1@example.com", primitive.NewObjectID())
	ts.ErrorIs(err, ErrNotFound)
	_, err = ts.svc.SubmitPurchase(ts.ctx, "ghost@example.com", sticker)
	ts.ErrorIs(err, ErrNotFound)

	ts.Equal(int64(400), ts.member("user1@example.com").Balance)
	rs, err := ts.svc.PurchaseRequests(ts.ctx, model.PurchaseRequestFilter{})
	ts.Require().NoError(err)
	ts.Empty(rs)
}

func (ts *marketSuite) TestApproveInsufficientStockChangesNothing() {
	ts.addMember("user1@example.com", "", 0, 1000)
	itemID := ts.addItem("Sticker", 500, 1)
	r, err := ts.svc.SubmitPurchase(ts.ctx, "user1@example.com", itemID)
	ts.Require().NoError(err)

	zero := int64(0)
	_, err = ts.svc.UpdateItem(ts.ctx, itemID, model.ItemPatch{Stock: &zero})
	ts.Require().NoError(err)

	_, err = ts.svc.Approve(ts.ctx, r.ID)
	ts.ErrorIs(err, ErrInsufficientStock)
	ts.Equal(int64(0), ts.item(itemID).Stock)
	ts.Equal(model.StatusPending, ts.request(r.ID).Status)
	ts.Nil(ts.request(r.ID).ApprovedAt)
}

func (ts *marketSuite) TestApproveTwice() {
	ts.addMember("user1@example.com", "", 0, 1000)
	itemID := ts.addItem("Sticker", 500, 3)
	r, err := ts.svc.SubmitPurchase(ts.ctx, "user1@example.com", itemID)
	ts.Require().NoError(err)

	approved, err := ts.svc.Approve(ts.ctx, r.ID)
	ts.Require().NoError(err)
	ts.Equal(model.StatusApproved, approved.Status)
	ts.NotNil(approved.ApprovedAt)

	_, err = ts.svc.Approve(ts.ctx, r.ID)
	ts.ErrorIs(err, ErrAlreadySettled)
	_, err = ts.svc.Reject(ts.ctx, r.ID)
	ts.ErrorIs(err, ErrAlreadySettled)

	ts.Equal(int64(2), ts.item(itemID).Stock)
	ts.Equal(int64(500), ts.member("user1@example.com").Balance)

	_, err = ts.svc.Approve(ts.ctx, primitive.NewObjectID())
	ts.ErrorIs(err, ErrNotFound)
}

func (ts *marketSuite) TestApproveDeletedItem() {
	ts.addMember("user1@example.com", "", 0, 1000)
	itemID := ts.addItem("Sticker", 500, 3)
	r, err := ts.svc.SubmitPurchase(ts.ctx, "user1@example.com", itemID)
	ts.Require().NoError(err)
	ts.Require().NoError(ts.svc.DeleteItem(ts.ctx, itemID))

	_, err = ts.svc.Approve(ts.ctx, r.ID)
	ts.ErrorIs(err, ErrNotFound)
	ts.True(ts.request(r.ID).Pending())
}

func (ts *marketSuite) TestConcurrentSettlement() {
	ts.addMember("user1@example.com", "", 0, 1000)
	itemID := ts.addItem("Sticker", 500, 3)
	r, err := ts.svc.SubmitPurchase(ts.ctx, "user1@example.com", itemID)
	ts.Require().NoError(err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	settled, refused := 0, 0
	for n := 0; n < 20; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			var err error
			if n%2 == 0 {
				_, err = ts.svc.Approve(ts.ctx, r.ID)
			} else {
				_, err = ts.svc.Reject(ts.ctx, r.ID)
			}
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				settled++
			} else if errors.Is(err, ErrAlreadySettled) {
				refused++
			}
		}(n)
	}
	wg.Wait()

	ts.Equal(1, settled)
	ts.Equal(19, refused)
	got := ts.request(r.ID)
	switch got.Status {
	case model.StatusApproved:
		ts.Equal(int64(2), ts.item(itemID).Stock)
		ts.Equal(int64(500), ts.member("user1@example.com").Balance)
	case model.StatusRejected:
		ts.Equal(int64(3), ts.item(itemID).Stock)
		ts.Equal(int64(1000), ts.member("user1@example.com").Balance)
	default:
		ts.Failf("request not settled", "status: %s", got.Status)
	}
}

func (ts *marketSuite) TestRejectRefunds() {
	ts.addMember("user1@example.com", "", 0, 800)
	itemID := ts.addItem("Sticker", 500, 3)
	r, err := ts.svc.SubmitPurchase(ts.ctx, "user1@example.com", itemID)
	ts.Require().NoError(err)
	ts.Equal(int64(300), ts.member("user1@example.com").Balance)

	res, err := ts.svc.Reject(ts.ctx, r.ID)
	ts.Require().NoError(err)
	ts.False(res.RefundSkipped)
	ts.Equal(model.StatusRejected, res.Request.Status)
	ts.NotNil(res.Request.RejectedAt)

	ts.Equal(int64(800), ts.member("user1@example.com").Balance)
	ts.Equal(int64(3), ts.item(itemID).Stock)
	ts.Equal(model.StatusRejected, ts.request(r.ID).Status)
}

func (ts *marketSuite) TestRejectWithoutMemberSkipsRefund() {
	id, err := ts.store.PurchaseRequestInsert(ts.ctx, model.PurchaseRequest{
		UserEmail:  "gone@example.com",
		ItemName:   "Sticker",
		ItemID:     primitive.NewObjectID(),
		Quantity:   1,
		TotalPrice: 500,
		Status:     model.StatusPending,
	})
	ts.Require().NoError(err)

	res, err := ts.svc.Reject(ts.ctx, id)
	ts.Require().NoError(err)
	ts.True(res.RefundSkipped)
	ts.Equal(model.StatusRejected, ts.request(id).Status)
}

// Sticker priced 500 with stock 3, buyer starts at 1000.
func (ts *marketSuite) TestPurchaseScenario() {
	ts.addMember("buyer@example.com", "", 0, 1000)
	itemID := ts.addItem("Sticker", 500, 3)

	first, err := ts.svc.SubmitPurchase(ts.ctx, "buyer@example.com", itemID)
	ts.Require().NoError(err)
	ts.Equal(int64(500), ts.member("buyer@example.com").Balance)
	ts.Equal(int64(3), ts.item(itemID).Stock)
	ts.Equal(model.StatusPending, ts.request(first.ID).Status)

	_, err = ts.svc.Approve(ts.ctx, first.ID)
	ts.Require().NoError(err)
	ts.Equal(int64(2), ts.item(itemID).Stock)
	ts.Equal(model.StatusApproved, ts.request(first.ID).Status)

	second, err := ts.svc.SubmitPurchase(ts.ctx, "buyer@example.com", itemID)
	ts.Require().NoError(err)
	ts.Equal(int64(0), ts.member("buyer@example.com").Balance)

	_, err = ts.svc.Reject(ts.ctx, second.ID)
	ts.Require().NoError(err)
	ts.Equal(int64(500), ts.member("buyer@example.com").Balance)
	ts.Equal(model.StatusRejected, ts.request(second.ID).Status)
	ts.Equal(int64(2), ts.item(itemID).Stock)
}

func (ts *marketSuite) TestPurchaseListings() {
	ts.addMember("a@x.com", "", 0, 1000)
	ts.addMember("b@x.com", "", 0, 1000)
	itemID := ts.addItem("Sticker", 100, 5)

	ra, err := ts.svc.SubmitPurchase(ts.ctx, "a@x.com", itemID)
	ts.Require().NoError(err)
	rb, err := ts.svc.SubmitPurchase(ts.ctx, "b@x.com", itemID)
	ts.Require().NoError(err)
	rc, err := ts.svc.SubmitPurchase(ts.ctx, "a@x.com", itemID)
	ts.Require().NoError(err)
	_, err = ts.svc.Approve(ts.ctx, rb.ID)
	ts.Require().NoError(err)

	all, err := ts.svc.PurchaseRequests(ts.ctx, model.PurchaseRequestFilter{})
	ts.Require().NoError(err)
	ts.Equal([]primitive.ObjectID{rc.ID, rb.ID, ra.ID}, ids(all))

	pending, err := ts.svc.PendingRequests(ts.ctx)
	ts.Require().NoError(err)
	ts.Equal([]primitive.ObjectID{rc.ID, ra.ID}, ids(pending))

	own, err := ts.svc.PurchaseRequests(ts.ctx, model.PurchaseRequestFilter{UserEmail: "B@x.com"})
	ts.Require().NoError(err)
	ts.Equal([]primitive.ObjectID{rb.ID}, ids(own))
}

func ids(rs []model.PurchaseRequest) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}
