package server

import (
	"github.com/gorilla/mux"
	"net/http"
)

func (s Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = s.loggingMw(s.notFoundHandler())
	r.Use(s.loggingMw, s.Metrics.instrumentMw)

	r.Handle("/metrics", s.Metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.maxBytesMw)

	api.Handle("/user/login", s.LoginLimiter.Handler(s.userLogin())).Methods(http.MethodPost)

	userAPI := api.PathPrefix("/user").Subrouter()
	userAPI.Use(s.authMw)
	userAPI.HandleFunc("/logout", s.userLogout()).Methods(http.MethodPost)
	userAPI.HandleFunc("/info", s.userInfo()).Methods(http.MethodGet)
	userAPI.HandleFunc("/purchases", s.userPurchases()).Methods(http.MethodGet)
	userAPI.HandleFunc("/sells", s.userSells()).Methods(http.MethodGet)
	userAPI.PathPrefix("").Handler(s.notFoundHandler())

	coinAPI := api.PathPrefix("/coin").Subrouter()
	coinAPI.Use(s.authMw)
	coinAPI.HandleFunc("/price", s.coinPrice()).Methods(http.MethodGet)
	coinAPI.HandleFunc("/history", s.coinHistory()).Methods(http.MethodGet)
	coinAPI.HandleFunc("/sell", s.coinSell()).Methods(http.MethodPost)
	coinAPI.PathPrefix("").Handler(s.notFoundHandler())

	itemAPI := api.PathPrefix("/item").Subrouter()
	itemAPI.Use(s.authMw)
	itemAPI.HandleFunc("/get/{itemID}", s.itemGetOne()).Methods(http.MethodGet)
	itemAPI.HandleFunc("/get", s.itemGetAll()).Methods(http.MethodGet)
	itemAPI.HandleFunc("/buy", s.itemBuy()).Methods(http.MethodPost)
	itemAPI.PathPrefix("").Handler(s.notFoundHandler())

	purchaseAPI := api.PathPrefix("/purchase").Subrouter()
	purchaseAPI.Use(s.authMw)
	purchaseAPI.HandleFunc("/list", s.purchaseList()).Methods(http.MethodGet)
	purchaseAPI.PathPrefix("").Handler(s.notFoundHandler())

	adminAPI := api.PathPrefix("/admin").Subrouter()
	adminAPI.Use(s.authMw, s.adminMw)
	adminAPI.HandleFunc("/coin/price", s.adminCoinPrice()).Methods(http.MethodPost)
	adminAPI.HandleFunc("/coin/grant", s.adminCoinGrant()).Methods(http.MethodPost)
	adminAPI.HandleFunc("/item/add", s.adminItemAdd()).Methods(http.MethodPost)
	adminAPI.HandleFunc("/item/update", s.adminItemUpdate()).Methods(http.MethodPost)
	adminAPI.HandleFunc("/item/remove", s.adminItemRemove()).Methods(http.MethodPost)
	adminAPI.HandleFunc("/purchase/pending", s.adminPurchasePending()).Methods(http.MethodGet)
	adminAPI.HandleFunc("/purchase/approve", s.adminPurchaseApprove()).Methods(http.MethodPost)
	adminAPI.HandleFunc("/purchase/reject", s.adminPurchaseReject()).Methods(http.MethodPost)
	adminAPI.PathPrefix("").Handler(s.notFoundHandler())

	feedAPI := api.PathPrefix("/feed").Subrouter()
	feedAPI.Use(s.authMw)
	feedAPI.HandleFunc("/{topic}", s.feed()).Methods(http.MethodGet)

	return r
}
