package server

import (
	"coinmarket/internal/market"
	"github.com/pkg/errors"
	"net/http"
)

func (s Server) coinPrice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		p, err := s.Market.CurrentPrice(r.Context())
		if err != nil {
			if errors.Is(err, market.ErrNoPrice) {
				s.writeJsonResponse(w, errorResponse{Error: "no_price", Message: err.Error()}, http.StatusNotFound)
				return
			}
			s.writeError(w, "coinPrice", tid, err)
			return
		}
		s.writeJsonResponse(w, p, http.StatusOK)
	}
}

func (s Server) coinHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ps, err := s.Market.PriceHistory(r.Context())
		if err != nil {
			s.writeError(w, "coinHistory", getTraceContext(r.Context()).traceID, err)
			return
		}
		s.writeJsonResponse(w, ps, http.StatusOK)
	}
}

func (s Server) coinSell() http.HandlerFunc {
	type request struct {
		Amount int64 `json:"amount"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		sess, ok := s.requestSession(w, r, "coinSell")
		if !ok {
			return
		}
		req := request{}
		if err := decodeJSON(r, &req); err != nil {
			s.badRequest(w, "coinSell", tid, err)
			return
		}

		res, err := s.Market.SellCoins(r.Context(), sess.Email, req.Amount)
		if err != nil {
			s.writeError(w, "coinSell", tid, err)
			return
		}
		s.writeJsonResponse(w, res, http.StatusOK)
	}
}

func (s Server) adminCoinPrice() http.HandlerFunc {
	type request struct {
		Price int64 `json:"price"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		req := request{}
		if err := decodeJSON(r, &req); err != nil {
			s.badRequest(w, "adminCoinPrice", tid, err)
			return
		}

		p, err := s.Market.SetPrice(r.Context(), req.Price)
		if err != nil {
			s.writeError(w, "adminCoinPrice", tid, err)
			return
		}
		s.writeJsonResponse(w, p, http.StatusOK)
	}
}

func (s Server) adminCoinGrant() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		req := market.CoinGrant{}
		if err := decodeJSON(r, &req); err != nil {
			s.badRequest(w, "adminCoinGrant", tid, err)
			return
		}

		res, err := s.Market.GrantCoins(r.Context(), req)
		if err != nil {
			s.writeError(w, "adminCoinGrant", tid, err)
			return
		}
		s.writeJsonResponse(w, res, http.StatusOK)
	}
}
