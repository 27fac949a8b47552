package server

import (
	"coinmarket/internal/market"
	"coinmarket/internal/session"
	"github.com/gorilla/websocket"
	"net/http"
	"strings"
	"time"
)

type Server struct {
	Market       market.Service
	Sessions     session.Manager
	Logger       logger
	Metrics      *Metrics
	LoginLimiter *RateLimiter
	Upgrader     websocket.Upgrader
	PingInterval time.Duration
}

type logger interface {
	Debug(v ...any)
	Info(v ...any)
	Error(v ...any)
	Tracef(format string, v ...any)
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

// OriginChecker accepts websocket upgrades from the listed origins only.
// Without origins the upgrader keeps its same-host check.
func OriginChecker(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := allowed[strings.ToLower(r.Header.Get("Origin"))]
		return ok
	}
}
