package db

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	Client             *mongo.Client
	KVCollection       *mongo.Collection
	UserCollection     *mongo.Collection
	ProductsCollection *mongo.Collection
	OrderCollection    *mongo.Collection
)

// Connect opens the Mongo client and binds the package collections.
func Connect(ctx context.Context, uri, database string) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	Client = client
	d := client.Database(database)
	KVCollection = d.Collection("kv")
	UserCollection = d.Collection("users")
	ProductsCollection = d.Collection("products")
	OrderCollection = d.Collection("orders")
	log.Printf("[db] connected to %s/%s", uri, database)
	return d, nil
}

// Disconnect closes the package client, if any.
func Disconnect(ctx context.Context) {
	if Client == nil {
		return
	}
	if err := Client.Disconnect(ctx); err != nil {
		log.Printf("[db] disconnect: %v", err)
	}
}

type kvDoc struct {
	Name  string `bson:"_id"`
	Value string `bson:"value"`
}

// KV persists held state as one document per name.
type KV struct {
	coll *mongo.Collection
}

func NewKV(coll *mongo.Collection) *KV {
	return &KV{coll: coll}
}

func (k *KV) Get(ctx context.Context, name string) (string, bool, error) {
	var doc kvDoc
	err := k.coll.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("mongo get %s: %w", name, err)
	}
	return doc.Value, true, nil
}

func (k *KV) Set(ctx context.Context, name, value string) error {
	_, err := k.coll.ReplaceOne(ctx, bson.M{"_id": name}, kvDoc{Name: name, Value: value}, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo set %s: %w", name, err)
	}
	return nil
}

func (k *KV) Remove(ctx context.Context, name string) error {
	if _, err := k.coll.DeleteOne(ctx, bson.M{"_id": name}); err != nil {
		return fmt.Errorf("mongo remove %s: %w", name, err)
	}
	return nil
}
