package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"gopkg.in/yaml.v3"

	"bazaar/models"
	"bazaar/store"
)

// Snapshot is a file holding raw marketplace collections. YAML and JSON are
// both accepted; JSON is read through the YAML decoder.
type Snapshot struct {
	Users    []bson.M
	Products []bson.M
	Orders   []bson.M
	Sessions map[string]*models.Session
}

type snapshotFile struct {
	Users    []map[string]any `yaml:"users"`
	Products []map[string]any `yaml:"products"`
	Orders   []map[string]any `yaml:"orders"`
	Sessions map[string]any   `yaml:"sessions"`
}

// ReadSnapshot loads path. Documents are kept raw so that a corrupt snapshot
// still reaches the integrity passes.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var f snapshotFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Snapshot{}, fmt.Errorf("parse snapshot %s: %w", path, err)
	}

	snap := Snapshot{
		Users:    docs(f.Users),
		Products: docs(f.Products),
		Orders:   docs(f.Orders),
		Sessions: make(map[string]*models.Session),
	}
	for id, raw := range f.Sessions {
		var sess models.Session
		if err := viaJSON(raw, &sess); err != nil {
			return Snapshot{}, fmt.Errorf("session %s: %w", id, err)
		}
		if sess.Cart == nil {
			sess.Cart = []models.CartItem{}
		}
		sess.UserID = id
		snap.Sessions[id] = &sess
	}
	return snap, nil
}

func docs(in []map[string]any) []bson.M {
	out := make([]bson.M, 0, len(in))
	for _, d := range in {
		out = append(out, bson.M(d))
	}
	return out
}

// viaJSON decodes a YAML-decoded value into v using v's json tags.
func viaJSON(in any, v any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Store builds an in-memory store from the snapshot, repairing it on the way
// in. The repair log is returned alongside.
func (s Snapshot) Store() (*store.Store, []string, error) {
	st := store.New(nil, nil)
	log, err := st.Import(s.Users, s.Products, s.Orders, s.Sessions)
	if err != nil {
		return nil, nil, err
	}
	return st, log, nil
}

// WriteSnapshot writes snap to path, as JSON for a .json extension and YAML
// otherwise. Field names follow the JSON wire names.
func WriteSnapshot(path string, snap any) error {
	var out []byte
	var err error
	if strings.EqualFold(filepath.Ext(path), ".json") {
		out, err = json.MarshalIndent(snap, "", "  ")
	} else {
		var tree any
		if err = viaJSON(snap, &tree); err == nil {
			out, err = yaml.Marshal(tree)
		}
	}
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}
