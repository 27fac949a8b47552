package server

import (
	"coinmarket/internal/model"
	"coinmarket/internal/session"
	"net/http"
)

// requestSession fetches the Session authMw put on the request, answering 500 when it is missing.
func (s Server) requestSession(w http.ResponseWriter, r *http.Request, funcName string) (session.Session, bool) {
	sess, err := session.FromContext(r.Context())
	if err != nil {
		s.Logger.Errorf("%s: %v, TraceID: %s", funcName, err, getTraceContext(r.Context()).traceID)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return sess, false
	}
	return sess, true
}

func (s Server) userLogin() http.HandlerFunc {
	type request struct {
		Email string `json:"email"`
	}
	type response struct {
		LoginToken string     `json:"login_token"`
		Email      string     `json:"email"`
		Role       model.Role `json:"role"`
		Landing    string     `json:"landing"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		req := request{}
		if err := decodeJSON(r, &req); err != nil {
			s.badRequest(w, "userLogin", tid, err)
			return
		}

		m, err := s.Market.Login(r.Context(), req.Email)
		if err != nil {
			s.writeError(w, "userLogin", tid, err)
			return
		}

		lt, sess, err := s.Sessions.Create(r.Context(), m)
		if err != nil {
			s.Logger.Errorf("userLogin: Error creating Session for email: %s, err: %v, TraceID: %s", m.Email, err, tid)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		s.Logger.Infof("userLogin: Member logged in, email: %s, role: %s, TraceID: %s", sess.Email, sess.Role, tid)
		s.writeJsonResponse(w, response{
			LoginToken: lt,
			Email:      sess.Email,
			Role:       sess.Role,
			Landing:    sess.Role.LandingRoute(),
		}, http.StatusOK)
	}
}

func (s Server) userLogout() http.HandlerFunc {
	type response struct {
		Success bool `json:"success"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.requestSession(w, r, "userLogout")
		if !ok {
			return
		}

		if err := s.Sessions.Destroy(r.Context(), sess); err != nil {
			s.Logger.Errorf("userLogout: Error destroying Session, err: %v, TraceID: %s", err, getTraceContext(r.Context()).traceID)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{Success: true}, http.StatusOK)
	}
}

func (s Server) userInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.requestSession(w, r, "userInfo")
		if !ok {
			return
		}

		m, err := s.Market.Member(r.Context(), sess.Email)
		if err != nil {
			s.writeError(w, "userInfo", getTraceContext(r.Context()).traceID, err)
			return
		}
		s.writeJsonResponse(w, m, http.StatusOK)
	}
}

func (s Server) userPurchases() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.requestSession(w, r, "userPurchases")
		if !ok {
			return
		}

		prs, err := s.Market.PurchaseRequests(r.Context(), model.PurchaseRequestFilter{UserEmail: sess.Email})
		if err != nil {
			s.writeError(w, "userPurchases", getTraceContext(r.Context()).traceID, err)
			return
		}
		s.writeJsonResponse(w, prs, http.StatusOK)
	}
}

func (s Server) userSells() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.requestSession(w, r, "userSells")
		if !ok {
			return
		}

		logs, err := s.Market.SellLogs(r.Context(), sess.Email)
		if err != nil {
			s.writeError(w, "userSells", getTraceContext(r.Context()).traceID, err)
			return
		}
		s.writeJsonResponse(w, logs, http.StatusOK)
	}
}
