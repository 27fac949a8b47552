package market

import (
	"coinmarket/internal/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (ts *marketSuite) TestAddItemValidation() {
	for _, in := range []ItemInput{
		{Name: " ", Price: 10, Stock: 1},
		{Name: "Mug", Price: 0, Stock: 1},
		{Name: "Mug", Price: -3, Stock: 1},
		{Name: "Mug", Price: 10, Stock: -1},
	} {
		_, err := ts.svc.AddItem(ts.ctx, in)
		ts.ErrorIs(err, ErrInvalidItem, "%+v", in)
	}
	is, err := ts.svc.Items(ts.ctx)
	ts.Require().NoError(err)
	ts.Empty(is)
}

func (ts *marketSuite) TestUpdateItem() {
	id := ts.addItem(" Sticker ", 500, 3)
	before := ts.item(id)
	ts.Equal("Sticker", before.Name)

	price := int64(650)
	i, err := ts.svc.UpdateItem(ts.ctx, id, model.ItemPatch{Price: &price})
	ts.Require().NoError(err)
	ts.Equal("Sticker", i.Name)
	ts.Equal(int64(650), i.Price)
	ts.Equal(int64(3), i.Stock)
	ts.Greater(int64(i.Timestamp), int64(before.Timestamp))
	ts.Equal(i, ts.item(id))

	bad := int64(-1)
	_, err = ts.svc.UpdateItem(ts.ctx, id, model.ItemPatch{Stock: &bad})
	ts.ErrorIs(err, ErrInvalidItem)
	_, err = ts.svc.UpdateItem(ts.ctx, id, model.ItemPatch{})
	ts.ErrorIs(err, ErrInvalidItem)
	_, err = ts.svc.UpdateItem(ts.ctx, primitive.NewObjectID(), model.ItemPatch{Price: &price})
	ts.ErrorIs(err, ErrNotFound)
	ts.Equal(int64(3), ts.item(id).Stock)
}

func (ts *marketSuite) TestDeleteItem() {
	keep := ts.addItem("Mug", 100, 1)
	drop := ts.addItem("Sticker", 500, 3)

	ts.Require().NoError(ts.svc.DeleteItem(ts.ctx, drop))
	ts.ErrorIs(ts.svc.DeleteItem(ts.ctx, drop), ErrNotFound)
	_, err := ts.svc.Item(ts.ctx, drop)
	ts.ErrorIs(err, ErrNotFound)

	is, err := ts.svc.Items(ts.ctx)
	ts.Require().NoError(err)
	ts.Require().Len(is, 1)
	ts.Equal(keep, is[0].ID)
}
