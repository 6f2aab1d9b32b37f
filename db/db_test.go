package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"bazaar/store"
)

var _ store.KV = (*KV)(nil)

func TestKV(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("get found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "bazaar.kv", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "bazaar:users"},
			{Key: "value", Value: "[]"},
		}))
		v, ok, err := NewKV(mt.Coll).Get(ctx, "bazaar:users")
		require.NoError(mt, err)
		assert.True(mt, ok)
		assert.Equal(mt, "[]", v)
	})

	mt.Run("get missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "bazaar.kv", mtest.FirstBatch))
		_, ok, err := NewKV(mt.Coll).Get(ctx, "crash:c1")
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("set", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		require.NoError(mt, NewKV(mt.Coll).Set(ctx, "crash:c1", "x"))
	})

	mt.Run("remove", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		require.NoError(mt, NewKV(mt.Coll).Remove(ctx, "crash:c1"))
	})

	mt.Run("server error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 11000, Message: "boom"}))
		err := NewKV(mt.Coll).Set(ctx, "crash:c1", "x")
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "mongo set crash:c1")
	})
}

func TestCollections_Load(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	mt.Run("load", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "id", Value: "u1"}}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "id", Value: "o1"}}, bson.D{{Key: "id", Value: "o2"}}),
		)
		c := Collections{Users: mt.Coll, Products: mt.Coll, Orders: mt.Coll}
		users, products, orders, err := c.Load(context.Background())
		require.NoError(mt, err)
		assert.Len(mt, users, 1)
		assert.Empty(mt, products)
		assert.Len(mt, orders, 2)
		assert.Equal(mt, "u1", users[0]["id"])
	})
}
