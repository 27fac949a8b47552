package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type feedEnvelope struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

func (s *serverSuite) dial(topic string, token string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.ts.URL, "http") + "/api/feed/" + topic + "?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	s.Equal(http.StatusSwitchingProtocols, resp.StatusCode)
	s.T().Cleanup(func() { conn.Close() })
	return conn
}

func readFeed[T any](s *serverSuite, conn *websocket.Conn, topic string) T {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	var env feedEnvelope
	s.Require().NoError(conn.ReadJSON(&env))
	s.Equal(topic, env.Topic)
	var v T
	s.Require().NoError(json.Unmarshal(env.Data, &v))
	return v
}

type priceSnapshot struct {
	Price int64 `json:"price"`
}

func (s *serverSuite) TestCurrentPriceFeed() {
	admin := s.login(adminEmail)
	alice := s.login(aliceEmail)

	conn := s.dial(topicCurrentPrice, alice)
	s.EqualValues(0, readFeed[priceSnapshot](s, conn, topicCurrentPrice).Price)

	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/api/admin/coin/price", admin, map[string]int64{"price": 7}).StatusCode)
	s.EqualValues(7, readFeed[priceSnapshot](s, conn, topicCurrentPrice).Price)

	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/api/admin/coin/price", admin, map[string]int64{"price": 9}).StatusCode)
	s.EqualValues(9, readFeed[priceSnapshot](s, conn, topicCurrentPrice).Price)
}

func (s *serverSuite) TestItemsAndMemberFeeds() {
	admin := s.login(adminEmail)
	alice := s.login(aliceEmail)

	items := s.dial(topicItems, alice)
	s.Empty(readFeed[[]itemResponse](s, items, topicItems))
	me := s.dial(topicMember, alice)
	s.EqualValues(100, readFeed[memberResponse](s, me, topicMember).Balance)

	i := s.addItem(admin, "Mug", 40, 3)
	got := readFeed[[]itemResponse](s, items, topicItems)
	s.Require().Len(got, 1)
	s.Equal(i.ID, got[0].ID)

	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/api/item/buy", alice, map[string]string{"item_id": i.ID}).StatusCode)
	s.EqualValues(60, readFeed[memberResponse](s, me, topicMember).Balance)
}

func (s *serverSuite) TestPendingFeed() {
	admin := s.login(adminEmail)
	alice := s.login(aliceEmail)
	i := s.addItem(admin, "Sticker", 30, 5)

	conn := s.dial(topicPending, admin)
	type snapshot struct {
		Requests []purchaseResponse `json:"requests"`
		Notify   *purchaseResponse  `json:"notify"`
	}
	first := readFeed[snapshot](s, conn, topicPending)
	s.Empty(first.Requests)
	s.Nil(first.Notify)

	resp := s.do(http.MethodPost, "/api/item/buy", alice, map[string]string{"item_id": i.ID})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	pr := decode[purchaseResponse](s, resp)

	next := readFeed[snapshot](s, conn, topicPending)
	s.Require().Len(next.Requests, 1)
	s.Require().NotNil(next.Notify)
	s.Equal(pr.ID, next.Notify.ID)

	// A new subscription of the same admin does not notify again.
	again := s.dial(topicPending, admin)
	snap := readFeed[snapshot](s, again, topicPending)
	s.Len(snap.Requests, 1)
	s.Nil(snap.Notify)
}

func (s *serverSuite) TestFeedRejections() {
	alice := s.login(aliceEmail)

	s.Equal(http.StatusForbidden, s.do(http.MethodGet, "/api/feed/pending", alice, nil).StatusCode)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/feed/weather", alice, nil).StatusCode)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/api/feed/items", "", nil).StatusCode)

	url := "ws" + strings.TrimPrefix(s.ts.URL, "http") + "/api/feed/items"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	s.Error(err)
	s.Require().NotNil(resp)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}
