package server

import (
	"coinmarket/internal/market"
	"coinmarket/internal/model"
	"github.com/gorilla/mux"
	"net/http"
)

func (s Server) itemGetAll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		is, err := s.Market.Items(r.Context())
		if err != nil {
			s.writeError(w, "itemGetAll", getTraceContext(r.Context()).traceID, err)
			return
		}
		s.writeJsonResponse(w, is, http.StatusOK)
	}
}

func (s Server) itemGetOne() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		itemID, err := parseObjectID(mux.Vars(r)["itemID"])
		if err != nil {
			s.badRequest(w, "itemGetOne", tid, err)
			return
		}

		i, err := s.Market.Item(r.Context(), itemID)
		if err != nil {
			s.writeError(w, "itemGetOne", tid, err)
			return
		}
		s.writeJsonResponse(w, i, http.StatusOK)
	}
}

func (s Server) itemBuy() http.HandlerFunc {
	type request struct {
		ItemID string `json:"item_id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		sess, ok := s.requestSession(w, r, "itemBuy")
		if !ok {
			return
		}
		req := request{}
		if err := decodeJSON(r, &req); err != nil {
			s.badRequest(w, "itemBuy", tid, err)
			return
		}
		itemID, err := parseObjectID(req.ItemID)
		if err != nil {
			s.badRequest(w, "itemBuy", tid, err)
			return
		}

		pr, err := s.Market.SubmitPurchase(r.Context(), sess.Email, itemID)
		if err != nil {
			s.writeError(w, "itemBuy", tid, err)
			return
		}
		s.writeJsonResponse(w, pr, http.StatusCreated)
	}
}

func (s Server) adminItemAdd() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		req := market.ItemInput{}
		if err := decodeJSON(r, &req); err != nil {
			s.badRequest(w, "adminItemAdd", tid, err)
			return
		}

		i, err := s.Market.AddItem(r.Context(), req)
		if err != nil {
			s.writeError(w, "adminItemAdd", tid, err)
			return
		}
		s.writeJsonResponse(w, i, http.StatusCreated)
	}
}

func (s Server) adminItemUpdate() http.HandlerFunc {
	type request struct {
		ItemID string `json:"item_id"`
		model.ItemPatch
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		req := request{}
		if err := decodeJSON(r, &req); err != nil {
			s.badRequest(w, "adminItemUpdate", tid, err)
			return
		}
		itemID, err := parseObjectID(req.ItemID)
		if err != nil {
			s.badRequest(w, "adminItemUpdate", tid, err)
			return
		}

		i, err := s.Market.UpdateItem(r.Context(), itemID, req.ItemPatch)
		if err != nil {
			s.writeError(w, "adminItemUpdate", tid, err)
			return
		}
		s.writeJsonResponse(w, i, http.StatusOK)
	}
}

func (s Server) adminItemRemove() http.HandlerFunc {
	type request struct {
		ItemID string `json:"item_id"`
	}
	type response struct {
		Success bool `json:"success"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		req := request{}
		if err := decodeJSON(r, &req); err != nil {
			s.badRequest(w, "adminItemRemove", tid, err)
			return
		}
		itemID, err := parseObjectID(req.ItemID)
		if err != nil {
			s.badRequest(w, "adminItemRemove", tid, err)
			return
		}

		if err = s.Market.DeleteItem(r.Context(), itemID); err != nil {
			s.writeError(w, "adminItemRemove", tid, err)
			return
		}
		s.writeJsonResponse(w, response{Success: true}, http.StatusOK)
	}
}
