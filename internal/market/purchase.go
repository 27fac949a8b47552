package market

import (
	"coinmarket/internal/database"
	"coinmarket/internal/misc"
	"coinmarket/internal/model"
	"context"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// itemNameLogLimit keeps log lines short for long catalog names.
const itemNameLogLimit = 45

// SubmitPurchase creates a pending request for one unit of itemID and debits the buyer right away.
// Stock is only taken when the request is approved.
func (s Service) SubmitPurchase(ctx context.Context, email string, itemID primitive.ObjectID) (model.PurchaseRequest, error) {
	email = model.NormalizeEmail(email)
	var r model.PurchaseRequest
	err := s.runTx(ctx, "SubmitPurchase", func(ctx context.Context) error {
		i, err := s.findItem(ctx, itemID)
		if err != nil {
			return err
		}
		if i.Stock <= 0 {
			return errors.Wrapf(ErrOutOfStock, "item: %s", i.Name)
		}
		m, err := s.findMember(ctx, email)
		if err != nil {
			return err
		}
		if m.Balance < i.Price {
			return errors.Wrapf(ErrInsufficientBalance, "balance %d, price %d", m.Balance, i.Price)
		}

		now := s.now()
		m.Balance -= i.Price
		m.LastModified = now
		if err = s.Store.MemberUpdateHoldings(ctx, m); err != nil {
			return err
		}
		r = model.PurchaseRequest{
			UserEmail:  email,
			ItemName:   i.Name,
			ItemID:     i.ID,
			Quantity:   1,
			TotalPrice: i.Price,
			Status:     model.StatusPending,
			Timestamp:  now,
		}
		r.ID, err = s.Store.PurchaseRequestInsert(ctx, r)
		return err
	})
	if err != nil {
		s.Logger.Debugf("SubmitPurchase: Purchase of ItemID: %s by %s failed, err: %v", itemID.Hex(), email, err)
		return model.PurchaseRequest{}, err
	}
	s.metrics().PurchaseSubmitted(r.TotalPrice)
	s.Logger.Infof("SubmitPurchase: %s requested Item: %s, RequestID: %s",
		email, misc.StringLimit(r.ItemName, itemNameLogLimit), r.ID.Hex())
	return r, nil
}

// Approve takes the reserved quantity out of stock and marks the request approved.
func (s Service) Approve(ctx context.Context, requestID primitive.ObjectID) (model.PurchaseRequest, error) {
	var r model.PurchaseRequest
	err := s.runTx(ctx, "Approve", func(ctx context.Context) error {
		var err error
		r, err = s.pendingRequest(ctx, requestID)
		if err != nil {
			return err
		}
		i, err := s.findItem(ctx, r.ItemID)
		if err != nil {
			return err
		}
		if i.Stock-r.Quantity < 0 {
			return errors.Wrapf(ErrInsufficientStock, "stock %d, quantity %d", i.Stock, r.Quantity)
		}

		now := s.now()
		if err = s.settle(ctx, requestID, model.StatusApproved, now); err != nil {
			return err
		}
		i.Stock -= r.Quantity
		if err = s.Store.ItemUpdate(ctx, i); err != nil {
			return err
		}
		r.Status = model.StatusApproved
		r.ApprovedAt = &now
		return nil
	})
	if err != nil {
		s.Logger.Debugf("Approve: Approval of RequestID: %s failed, err: %v", requestID.Hex(), err)
		return model.PurchaseRequest{}, err
	}
	s.metrics().PurchaseSettled(model.StatusApproved)
	s.Logger.Infof("Approve: RequestID: %s approved, Item: %s", requestID.Hex(), misc.StringLimit(r.ItemName, itemNameLogLimit))
	return r, nil
}

type RejectResult struct {
	Request model.PurchaseRequest `json:"request"`
	// RefundSkipped is set when no member matches the request's email, the request is rejected regardless.
	RefundSkipped bool `json:"refund_skipped"`
}

// Reject marks the request rejected and refunds its total price to the buyer.
func (s Service) Reject(ctx context.Context, requestID primitive.ObjectID) (RejectResult, error) {
	var res RejectResult
	err := s.runTx(ctx, "Reject", func(ctx context.Context) error {
		r, err := s.pendingRequest(ctx, requestID)
		if err != nil {
			return err
		}
		now := s.now()
		if err = s.settle(ctx, requestID, model.StatusRejected, now); err != nil {
			return err
		}
		r.Status = model.StatusRejected
		r.RejectedAt = &now
		res = RejectResult{Request: r}

		m, err := s.findMember(ctx, r.UserEmail)
		if errors.Is(err, ErrNotFound) {
			res.RefundSkipped = true
			return nil
		}
		if err != nil {
			return err
		}
		m.Balance += r.TotalPrice
		m.LastModified = now
		return s.Store.MemberUpdateHoldings(ctx, m)
	})
	if err != nil {
		s.Logger.Debugf("Reject: Rejection of RequestID: %s failed, err: %v", requestID.Hex(), err)
		return RejectResult{}, err
	}
	s.metrics().PurchaseSettled(model.StatusRejected)
	if res.RefundSkipped {
		s.Logger.Errorf("Reject: RequestID: %s rejected but no member found for %s, refund of %d skipped",
			requestID.Hex(), res.Request.UserEmail, res.Request.TotalPrice)
		return res, nil
	}
	s.Logger.Infof("Reject: RequestID: %s rejected, refunded %d to %s",
		requestID.Hex(), res.Request.TotalPrice, res.Request.UserEmail)
	return res, nil
}

func (s Service) pendingRequest(ctx context.Context, requestID primitive.ObjectID) (model.PurchaseRequest, error) {
	r, err := s.findRequest(ctx, requestID)
	if err != nil {
		return r, err
	}
	if !r.Pending() {
		return r, errors.Wrapf(ErrAlreadySettled, "RequestID: %s, status: %s", requestID.Hex(), r.Status)
	}
	return r, nil
}

func (s Service) settle(ctx context.Context, requestID primitive.ObjectID, status model.PurchaseStatus, at primitive.DateTime) error {
	err := s.Store.PurchaseRequestSettle(ctx, requestID, status, at)
	if errors.Is(err, database.ErrNoDocumentsModified) {
		return errors.Wrapf(ErrAlreadySettled, "RequestID: %s", requestID.Hex())
	}
	return err
}

// PurchaseRequests lists requests matching f, newest first.
func (s Service) PurchaseRequests(ctx context.Context, f model.PurchaseRequestFilter) ([]model.PurchaseRequest, error) {
	f.UserEmail = model.NormalizeEmail(f.UserEmail)
	return s.Store.PurchaseRequestsFind(ctx, f)
}

func (s Service) PendingRequests(ctx context.Context) ([]model.PurchaseRequest, error) {
	return s.Store.PurchaseRequestsFind(ctx, model.PurchaseRequestFilter{Status: model.StatusPending})
}
