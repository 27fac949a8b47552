package market

func (ts *marketSuite) TestSetPriceTwice() {
	_, err := ts.svc.CurrentPrice(ts.ctx)
	ts.ErrorIs(err, ErrNoPrice)

	first, err := ts.svc.SetPrice(ts.ctx, 1000)
	ts.Require().NoError(err)
	second, err := ts.svc.SetPrice(ts.ctx, 1000)
	ts.Require().NoError(err)
	ts.NotEqual(first.ID, second.ID)

	cur, err := ts.svc.CurrentPrice(ts.ctx)
	ts.Require().NoError(err)
	ts.Equal(int64(1000), cur.Price)
	ts.Equal(second.Timestamp, cur.Timestamp)

	h, err := ts.svc.PriceHistory(ts.ctx)
	ts.Require().NoError(err)
	ts.Require().Len(h, 2)
	ts.Equal(first.ID, h[0].ID)
	ts.Equal(second.ID, h[1].ID)
}

func (ts *marketSuite) TestSetPriceHistoryAscending() {
	for _, p := range []int64{5, 9, 7} {
		_, err := ts.svc.SetPrice(ts.ctx, p)
		ts.Require().NoError(err)
	}
	h, err := ts.svc.PriceHistory(ts.ctx)
	ts.Require().NoError(err)
	ts.Require().Len(h, 3)
	ts.Equal([]int64{5, 9, 7}, []int64{h[0].Price, h[1].Price, h[2].Price})
	ts.Less(int64(h[0].Timestamp), int64(h[2].Timestamp))

	cur, err := ts.svc.CurrentPrice(ts.ctx)
	ts.Require().NoError(err)
	ts.Equal(int64(7), cur.Price)
}

func (ts *marketSuite) TestSetPriceRejectsNonPositive() {
	for _, p := range []int64{0, -5} {
		_, err := ts.svc.SetPrice(ts.ctx, p)
		ts.ErrorIs(err, ErrInvalidAmount)
	}
	h, err := ts.svc.PriceHistory(ts.ctx)
	ts.Require().NoError(err)
	ts.Empty(h)
}
