package store

import (
	"bytes"
	"fmt"
	"log"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsonrw"

	"bazaar/integrity"
	"bazaar/models"
)

// toDocs converts typed records to raw documents via BSON, which, unlike
// JSON, carries NaN and infinities through unchanged.
func toDocs[T any](items []T) ([]bson.M, error) {
	out := make([]bson.M, 0, len(items))
	for i := range items {
		raw, err := marshalDoc(items[i])
		if err != nil {
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
		var doc bson.M
		if err := bson.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", i, err)
		}
		out = append(out, doc)
	}
	return out, nil
}

// fromDocs decodes raw documents into typed records. A document that still
// does not decode is dropped, and one log line per drop is returned.
func fromDocs[T any](kind string, docs []bson.M) ([]T, []string) {
	out := make([]T, 0, len(docs))
	var dropped []string
	for i, doc := range docs {
		var v T
		raw, err := bson.Marshal(doc)
		if err == nil {
			err = bson.Unmarshal(raw, &v)
		}
		if err != nil {
			id, _ := doc["id"].(string)
			if id == "" {
				id = fmt.Sprintf("#%d", i)
			}
			log.Printf("[store] dropped undecodable %s record %s: %v", strings.ToLower(kind), id, err)
			dropped = append(dropped, fmt.Sprintf("%s: dropped undecodable record %s", kind, id))
			continue
		}
		out = append(out, v)
	}
	return out, dropped
}

// decodeAll turns a pass result into a collection replacement. Records
// dropped while decoding extend the pass log.
func decodeAll(res integrity.Result) (Command, []string) {
	cmd := Command{Kind: CmdReplaceCollections}
	var users, products, orders []string
	cmd.Users, users = fromDocs[models.User]("Users", res.Users)
	cmd.Products, products = fromDocs[models.Product]("Products", res.Products)
	cmd.Orders, orders = fromDocs[models.Order]("Orders", res.Orders)

	dropped := append(append(users, products...), orders...)
	if len(dropped) == 0 {
		return cmd, res.Log
	}
	if res.Healthy() {
		return cmd, dropped
	}
	return cmd, append(append([]string{}, res.Log...), dropped...)
}

// marshalDoc writes nil slices as empty arrays so that untouched records do
// not read back as malformed.
func marshalDoc(v any) ([]byte, error) {
	buf := new(bytes.Buffer)
	vw, err := bsonrw.NewBSONValueWriter(buf)
	if err != nil {
		return nil, err
	}
	enc, err := bson.NewEncoder(vw)
	if err != nil {
		return nil, err
	}
	enc.NilSliceAsEmpty()
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
