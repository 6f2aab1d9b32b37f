package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Collections reads and rewrites the raw users, products and orders
// documents, for repairing a database in place.
type Collections struct {
	Users    *mongo.Collection
	Products *mongo.Collection
	Orders   *mongo.Collection
}

// Bound returns the collections bound by Connect.
func Bound() Collections {
	return Collections{Users: UserCollection, Products: ProductsCollection, Orders: OrderCollection}
}

// Load returns every document of the three collections, untyped.
func (c Collections) Load(ctx context.Context) (users, products, orders []bson.M, err error) {
	if users, err = all(ctx, c.Users); err != nil {
		return nil, nil, nil, err
	}
	if products, err = all(ctx, c.Products); err != nil {
		return nil, nil, nil, err
	}
	if orders, err = all(ctx, c.Orders); err != nil {
		return nil, nil, nil, err
	}
	return users, products, orders, nil
}

func all(ctx context.Context, coll *mongo.Collection) ([]bson.M, error) {
	cur, err := coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	defer cur.Close(ctx)
	docs := []bson.M{}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("read %s: %w", coll.Name(), err)
	}
	return docs, nil
}

// Replace swaps each collection's contents for docs.
func (c Collections) Replace(ctx context.Context, users, products, orders []bson.M) error {
	for _, set := range []struct {
		coll *mongo.Collection
		docs []bson.M
	}{{c.Users, users}, {c.Products, products}, {c.Orders, orders}} {
		if err := replaceAll(ctx, set.coll, set.docs); err != nil {
			return err
		}
	}
	return nil
}

func replaceAll(ctx context.Context, coll *mongo.Collection, docs []bson.M) error {
	if _, err := coll.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("clear %s: %w", coll.Name(), err)
	}
	if len(docs) == 0 {
		return nil
	}
	batch := make([]interface{}, len(docs))
	for i, d := range docs {
		batch[i] = d
	}
	if _, err := coll.InsertMany(ctx, batch); err != nil {
		return fmt.Errorf("insert %s: %w", coll.Name(), err)
	}
	return nil
}
