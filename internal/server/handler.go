package server

import (
	"coinmarket/internal/market"
	"coinmarket/internal/session"
	"encoding/json"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"net/http"
)

func (s Server) writeJsonResponse(w http.ResponseWriter, response any, statusCode int) {
	if resp, err := json.Marshal(response); err != nil {
		s.Logger.Errorf("Error encoding response: %+v, err: %v", response, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	} else {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(statusCode)
		if _, err = w.Write(resp); err != nil {
			s.Logger.Errorf("Error writing JSON response: %s, err: %v", resp, err)
		}
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var errorStatuses = []struct {
	err    error
	code   string
	status int
}{
	{market.ErrInvalidEmail, "invalid_email", http.StatusBadRequest},
	{market.ErrInvalidAmount, "invalid_amount", http.StatusBadRequest},
	{market.ErrInvalidItem, "invalid_item", http.StatusBadRequest},
	{market.ErrNotFound, "not_found", http.StatusNotFound},
	{market.ErrAlreadySettled, "already_settled", http.StatusConflict},
	{market.ErrInsufficientCoins, "insufficient_coins", http.StatusUnprocessableEntity},
	{market.ErrInsufficientBalance, "insufficient_balance", http.StatusUnprocessableEntity},
	{market.ErrInsufficientStock, "insufficient_stock", http.StatusUnprocessableEntity},
	{market.ErrOutOfStock, "out_of_stock", http.StatusUnprocessableEntity},
	{market.ErrNoPrice, "no_price", http.StatusUnprocessableEntity},
	{session.ErrUnauthenticated, "unauthenticated", http.StatusUnauthorized},
}

// writeError answers with the status matching err. Anything unknown is a 500 and gets logged at error level.
func (s Server) writeError(w http.ResponseWriter, funcName string, traceID string, err error) {
	for _, es := range errorStatuses {
		if errors.Is(err, es.err) {
			s.Logger.Debugf("%s: Request failed with %d, err: %v, TraceID: %s", funcName, es.status, err, traceID)
			s.writeJsonResponse(w, errorResponse{Error: es.code, Message: err.Error()}, es.status)
			return
		}
	}
	s.Logger.Errorf("%s: Request failed, err: %v, TraceID: %s", funcName, err, traceID)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (s Server) badRequest(w http.ResponseWriter, funcName string, traceID string, err error) {
	s.Logger.Debugf("%s: Bad request, err: %v, TraceID: %s", funcName, err, traceID)
	s.writeJsonResponse(w, errorResponse{Error: "bad_request", Message: err.Error()}, http.StatusBadRequest)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(err, "error decoding JSON")
	}
	return nil
}

func parseObjectID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return id, errors.Wrapf(err, "invalid ID: %q", hex)
	}
	return id, nil
}

func (s Server) notFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		s.Logger.Debugf("notFoundHandler: Requested resource not found: %s %s, TraceID: %s", r.Method, r.URL.Path, tid)
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	}
}
