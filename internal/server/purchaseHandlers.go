package server

import (
	"coinmarket/internal/model"
	"github.com/pkg/errors"
	"net/http"
)

func (s Server) purchaseList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		f := model.PurchaseRequestFilter{}
		if status := r.URL.Query().Get("status"); status != "" {
			f.Status = model.PurchaseStatus(status)
			switch f.Status {
			case model.StatusPending, model.StatusApproved, model.StatusRejected:
			default:
				s.badRequest(w, "purchaseList", tid, errors.Errorf("unknown status: %q", status))
				return
			}
		}

		prs, err := s.Market.PurchaseRequests(r.Context(), f)
		if err != nil {
			s.writeError(w, "purchaseList", tid, err)
			return
		}
		s.writeJsonResponse(w, prs, http.StatusOK)
	}
}

func (s Server) adminPurchasePending() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prs, err := s.Market.PendingRequests(r.Context())
		if err != nil {
			s.writeError(w, "adminPurchasePending", getTraceContext(r.Context()).traceID, err)
			return
		}
		s.writeJsonResponse(w, prs, http.StatusOK)
	}
}

type settleRequest struct {
	RequestID string `json:"request_id"`
}

func (s Server) adminPurchaseApprove() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		req := settleRequest{}
		if err := decodeJSON(r, &req); err != nil {
			s.badRequest(w, "adminPurchaseApprove", tid, err)
			return
		}
		requestID, err := parseObjectID(req.RequestID)
		if err != nil {
			s.badRequest(w, "adminPurchaseApprove", tid, err)
			return
		}

		pr, err := s.Market.Approve(r.Context(), requestID)
		if err != nil {
			s.writeError(w, "adminPurchaseApprove", tid, err)
			return
		}
		s.writeJsonResponse(w, pr, http.StatusOK)
	}
}

func (s Server) adminPurchaseReject() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		req := settleRequest{}
		if err := decodeJSON(r, &req); err != nil {
			s.badRequest(w, "adminPurchaseReject", tid, err)
			return
		}
		requestID, err := parseObjectID(req.RequestID)
		if err != nil {
			s.badRequest(w, "adminPurchaseReject", tid, err)
			return
		}

		res, err := s.Market.Reject(r.Context(), requestID)
		if err != nil {
			s.writeError(w, "adminPurchaseReject", tid, err)
			return
		}
		s.writeJsonResponse(w, res, http.StatusOK)
	}
}
