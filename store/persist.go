package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"

	"bazaar/models"
)

// Names under which the store persists its collections.
const (
	KeyUsers    = "bazaar:users"
	KeyProducts = "bazaar:products"
	KeyOrders   = "bazaar:orders"
	KeySessions = "bazaar:sessions"
)

// Save writes every collection through the codec to the KV. A collection
// that cannot be encoded (NaN totals, for example) triggers one repair pass
// before the write is retried.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.encodeLocked()
	if err != nil {
		log.Printf("[store] encode failed, repairing before retry: %v", err)
		if _, rerr := s.repairLocked(s.repair.Reconcile); rerr != nil {
			return fmt.Errorf("save: %w", rerr)
		}
		if values, err = s.encodeLocked(); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}

	for _, name := range []string{KeyUsers, KeyProducts, KeyOrders, KeySessions} {
		enc, err := s.codec.Encode(values[name])
		if err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
		if err := s.kv.Set(ctx, name, enc); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) encodeLocked() (map[string]string, error) {
	out := make(map[string]string, 4)
	for name, v := range map[string]any{
		KeyUsers:    s.users,
		KeyProducts: s.products,
		KeyOrders:   s.orders,
		KeySessions: s.sessions,
	} {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		out[name] = string(raw)
	}
	return out, nil
}

// Load replaces held state with what the KV holds. Raw documents go through
// the integrity reconciler before they are decoded, so a partially corrupt
// snapshot still loads. A collection that is not valid JSON at all is
// dropped and logged. The reconciler's log is returned.
func (s *Store) Load(ctx context.Context) ([]string, error) {
	users, err := s.readDocs(ctx, KeyUsers)
	if err != nil {
		return nil, err
	}
	products, err := s.readDocs(ctx, KeyProducts)
	if err != nil {
		return nil, err
	}
	orders, err := s.readDocs(ctx, KeyOrders)
	if err != nil {
		return nil, err
	}
	sessions, err := s.readSessions(ctx)
	if err != nil {
		return nil, err
	}

	return s.Import(users, products, orders, sessions)
}

// Import replaces held state with raw documents, repairing them first. A nil
// sessions map keeps the current sessions.
func (s *Store) Import(users, products, orders []bson.M, sessions map[string]*models.Session) ([]string, error) {
	cmd, lines := decodeAll(s.repair.Reconcile(users, products, orders))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.Enqueue(cmd)
	s.flushLocked()
	if sessions != nil {
		s.sessions = sessions
	}
	return lines, nil
}

// Snapshot is a copy of every held collection.
type Snapshot struct {
	Users    []models.User              `json:"users"`
	Products []models.Product           `json:"products"`
	Orders   []models.Order             `json:"orders"`
	Sessions map[string]*models.Session `json:"sessions"`
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Users:    s.users,
		Products: s.products,
		Orders:   s.orders,
		Sessions: make(map[string]*models.Session, len(s.sessions)),
	}
	for id, sess := range s.sessions {
		snap.Sessions[id] = sess.Clone()
	}
	return snap
}

func (s *Store) readRaw(ctx context.Context, name string) (string, bool, error) {
	stored, ok, err := s.kv.Get(ctx, name)
	if err != nil {
		return "", false, fmt.Errorf("load %s: %w", name, err)
	}
	if !ok {
		return "", false, nil
	}
	plain, err := s.codec.Decode(stored)
	if err != nil {
		log.Printf("[store] %s could not be decoded, starting empty: %v", name, err)
		return "", false, nil
	}
	return plain, true, nil
}

func (s *Store) readDocs(ctx context.Context, name string) ([]bson.M, error) {
	plain, ok, err := s.readRaw(ctx, name)
	if err != nil || !ok {
		return []bson.M{}, err
	}
	var raw []any
	if err := json.Unmarshal([]byte(plain), &raw); err != nil {
		log.Printf("[store] %s is not a JSON array, starting empty: %v", name, err)
		return []bson.M{}, nil
	}
	docs := make([]bson.M, 0, len(raw))
	for i, v := range raw {
		d, ok := v.(map[string]any)
		if !ok {
			log.Printf("[store] %s: dropped non-object entry %d", name, i)
			continue
		}
		docs = append(docs, bson.M(d))
	}
	return docs, nil
}

func (s *Store) readSessions(ctx context.Context) (map[string]*models.Session, error) {
	sessions := make(map[string]*models.Session)
	plain, ok, err := s.readRaw(ctx, KeySessions)
	if err != nil || !ok {
		return sessions, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(plain), &raw); err != nil {
		log.Printf("[store] %s is not a JSON object, starting empty: %v", KeySessions, err)
		return sessions, nil
	}
	for id, body := range raw {
		var sess models.Session
		if err := json.Unmarshal(body, &sess); err != nil {
			log.Printf("[store] dropped corrupt session %s: %v", id, err)
			continue
		}
		if sess.Cart == nil {
			sess.Cart = []models.CartItem{}
		}
		sess.UserID = id
		sessions[id] = &sess
	}
	return sessions, nil
}
