package server

import (
	"coinmarket/internal/model"
	"coinmarket/internal/session"
	"context"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"net/http"
	"time"
)

const (
	topicPriceHistory = "price-history"
	topicCurrentPrice = "current-price"
	topicItems        = "items"
	topicPurchases    = "purchases"
	topicMember       = "member"
	topicPending      = "pending"

	feedWriteWait       = 10 * time.Second
	defaultPingInterval = 30 * time.Second
)

var errUnknownTopic = errors.New("unknown feed topic")

type feedMessage struct {
	Topic string `json:"topic"`
	Data  any    `json:"data"`
}

func (s Server) pingInterval() time.Duration {
	if s.PingInterval <= 0 {
		return defaultPingInterval
	}
	return s.PingInterval
}

// relay erases the snapshot type so every topic can share one write loop.
func relay[T any](ctx context.Context, ch <-chan T, err error) (<-chan any, error) {
	if err != nil {
		return nil, err
	}
	out := make(chan any)
	go func() {
		defer close(out)
		for v := range ch {
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s Server) subscribe(ctx context.Context, topic string, sess session.Session) (<-chan any, error) {
	switch topic {
	case topicPriceHistory:
		ch, err := s.Market.PriceHistoryFeed(ctx)
		return relay(ctx, ch, err)
	case topicCurrentPrice:
		ch, err := s.Market.CurrentPriceFeed(ctx)
		return relay(ctx, ch, err)
	case topicItems:
		ch, err := s.Market.ItemsFeed(ctx)
		return relay(ctx, ch, err)
	case topicPurchases:
		ch, err := s.Market.PurchaseRequestsFeed(ctx, model.PurchaseRequestFilter{})
		return relay(ctx, ch, err)
	case topicMember:
		ch, err := s.Market.MemberFeed(ctx, sess.Email)
		return relay(ctx, ch, err)
	case topicPending:
		cursor := session.AdminCursor{Store: s.Sessions.Store, Email: sess.Email}
		ch, err := s.Market.PendingRequestsFeed(ctx, cursor)
		return relay(ctx, ch, err)
	}
	return nil, errors.Wrapf(errUnknownTopic, "topic: %q", topic)
}

// feed streams snapshots of one topic over a websocket until either side goes away.
// A feed that ends on the server side is closed with CloseTryAgainLater so the client subscribes again.
func (s Server) feed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		sess, ok := s.requestSession(w, r, "feed")
		if !ok {
			return
		}
		topic := mux.Vars(r)["topic"]
		if topic == topicPending && !sess.Admin() {
			s.Logger.Infof("feed: Member without admin role asked for %s, email: %s, TraceID: %s", topic, sess.Email, tid)
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		updates, err := s.subscribe(ctx, topic, sess)
		if err != nil {
			if errors.Is(err, errUnknownTopic) {
				s.Logger.Debugf("feed: %v, TraceID: %s", err, tid)
				http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
				return
			}
			s.writeError(w, "feed", tid, err)
			return
		}

		conn, err := s.Upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.Logger.Debugf("feed: Websocket upgrade failed, err: %v, TraceID: %s", err, tid)
			return
		}
		defer conn.Close()

		s.Metrics.feedOpened(topic)
		defer s.Metrics.feedClosed(topic)
		s.Logger.Debugf("feed: Subscribed to %s, email: %s, TraceID: %s", topic, sess.Email, tid)

		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(s.pingInterval())
		defer ping.Stop()
		for {
			select {
			case v, ok := <-updates:
				if !ok {
					if ctx.Err() == nil {
						s.Logger.Infof("feed: Feed %s ended, closing websocket, TraceID: %s", topic, tid)
						msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "feed ended")
						_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(feedWriteWait))
					}
					s.Logger.Debugf("feed: Unsubscribed from %s, email: %s, TraceID: %s", topic, sess.Email, tid)
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
				if err = conn.WriteJSON(feedMessage{Topic: topic, Data: v}); err != nil {
					s.Logger.Debugf("feed: Error writing %s snapshot, err: %v, TraceID: %s", topic, err, tid)
					return
				}
			case <-ping.C:
				if err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(feedWriteWait)); err != nil {
					s.Logger.Debugf("feed: Error writing ping, err: %v, TraceID: %s", err, tid)
					return
				}
			}
		}
	}
}
