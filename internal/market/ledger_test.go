package market

import (
	"sync"

	"github.com/pkg/errors"
)

func (ts *marketSuite) TestSellCoins() {
	ts.addMember("user1@example.com", "", 10, 100)
	_, err := ts.svc.SetPrice(ts.ctx, 25)
	ts.Require().NoError(err)

	res, err := ts.svc.SellCoins(ts.ctx, "User1@example.com", 4)
	ts.Require().NoError(err)
	ts.Equal(int64(100), res.Earned)
	ts.Equal(int64(25), res.PricePerCoin)
	ts.Equal(int64(6), res.Member.Coins)

	m := ts.member("user1@example.com")
	ts.Equal(int64(6), m.Coins)
	ts.Equal(int64(200), m.Balance)
	ts.Equal(res.Member.Version, m.Version)

	ls, err := ts.svc.SellLogs(ts.ctx, "user1@example.com")
	ts.Require().NoError(err)
	ts.Require().Len(ls, 1)
	ts.Equal(int64(4), ls[0].Amount)
	ts.Equal(int64(25), ls[0].PricePerCoin)
	ts.Equal(int64(100), ls[0].TotalEarned)
}

func (ts *marketSuite) TestSellCoinsFailuresLeaveStateUnchanged() {
	ts.addMember("user1@example.com", "", 3, 50)

	_, err := ts.svc.SellCoins(ts.ctx, "user1@example.com", 1)
	ts.ErrorIs(err, ErrNoPrice)

	_, err = ts.svc.SetPrice(ts.ctx, 10)
	ts.Require().NoError(err)

	_, err = ts.svc.SellCoins(ts.ctx, "user1@example.com", 4)
	ts.ErrorIs(err, ErrInsufficientCoins)
	for _, a := range []int64{0, -1} {
		_, err = ts.svc.SellCoins(ts.ctx, "user1@example.com", a)
		ts.ErrorIs(err, ErrInvalidAmount)
	}
	_, err = ts.svc.SellCoins(ts.ctx, "ghost@example.com", 1)
	ts.ErrorIs(err, ErrNotFound)

	m := ts.member("user1@example.com")
	ts.Equal(int64(3), m.Coins)
	ts.Equal(int64(50), m.Balance)
	ls, err := ts.svc.SellLogs(ts.ctx, "user1@example.com")
	ts.Require().NoError(err)
	ts.Empty(ls)
}

func (ts *marketSuite) TestSellCoinsConcurrently() {
	ts.addMember("user1@example.com", "", 10, 0)
	_, err := ts.svc.SetPrice(ts.ctx, 3)
	ts.Require().NoError(err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	sold, refused := 0, 0
	for n := 0; n < 25; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ts.svc.SellCoins(ts.ctx, "user1@example.com", 1)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				sold++
			} else if errors.Is(err, ErrInsufficientCoins) {
				refused++
			}
		}()
	}
	wg.Wait()

	ts.Equal(10, sold)
	ts.Equal(15, refused)
	m := ts.member("user1@example.com")
	ts.Equal(int64(0), m.Coins)
	ts.Equal(int64(30), m.Balance)
}

func (ts *marketSuite) TestGrantCoinsClampsAtZero() {
	ts.addMember("user1@example.com", "", 5, 0)

	rs, err := ts.svc.GrantCoins(ts.ctx, CoinGrant{Email: "user1@example.com", Delta: -8})
	ts.Require().NoError(err)
	ts.Require().Len(rs, 1)
	ts.Equal(CoinGrantResult{Email: "user1@example.com", PreviousCoins: 5, Coins: 0, Clamped: true}, rs[0])
	ts.Equal(int64(0), ts.member("user1@example.com").Coins)

	rs, err = ts.svc.GrantCoins(ts.ctx, CoinGrant{Email: "user1@example.com", Delta: 12})
	ts.Require().NoError(err)
	ts.Equal(CoinGrantResult{Email: "user1@example.com", PreviousCoins: 0, Coins: 12}, rs[0])
}

func (ts *marketSuite) TestGrantCoinsExactMatchByDefault() {
	ts.addMember("al@a.com", "", 1, 0)
	ts.addMember("alice@a.com", "", 1, 0)

	rs, err := ts.svc.GrantCoins(ts.ctx, CoinGrant{Email: "al@a.com", Delta: 2})
	ts.Require().NoError(err)
	ts.Len(rs, 1)
	ts.Equal(int64(3), ts.member("al@a.com").Coins)
	ts.Equal(int64(1), ts.member("alice@a.com").Coins)

	_, err = ts.svc.GrantCoins(ts.ctx, CoinGrant{Email: "al@b.com", Delta: 2})
	ts.ErrorIs(err, ErrNotFound)
}

func (ts *marketSuite) TestGrantCoinsPrefixMatch() {
	ts.addMember("al@a.com", "", 1, 0)
	ts.addMember("alice@a.com", "", 1, 0)
	ts.addMember("bob@a.com", "", 1, 0)

	rs, err := ts.svc.GrantCoins(ts.ctx, CoinGrant{Email: "al@whatever.com", Delta: 4, MatchPrefix: true})
	ts.Require().NoError(err)
	ts.Require().Len(rs, 2)
	ts.Equal("al@a.com", rs[0].Email)
	ts.Equal("alice@a.com", rs[1].Email)
	ts.Equal(int64(5), ts.member("alice@a.com").Coins)
	ts.Equal(int64(1), ts.member("bob@a.com").Coins)

	_, err = ts.svc.GrantCoins(ts.ctx, CoinGrant{Email: "zed@a.com", Delta: 4, MatchPrefix: true})
	ts.ErrorIs(err, ErrNotFound)
}

func (ts *marketSuite) TestGrantCoinsValidation() {
	ts.addMember("user1@example.com", "", 5, 0)

	_, err := ts.svc.GrantCoins(ts.ctx, CoinGrant{Email: "user1@example.com"})
	ts.ErrorIs(err, ErrInvalidAmount)
	_, err = ts.svc.GrantCoins(ts.ctx, CoinGrant{Email: " ", Delta: 1})
	ts.ErrorIs(err, ErrInvalidEmail)
	ts.Equal(int64(5), ts.member("user1@example.com").Coins)
}
