// Package store owns the held marketplace state: catalog, users, orders and
// per-client sessions.
//
// State changes only through Store methods. User actions (add to cart,
// select address, place order) are applied directly as reducers.
// Reconciliation passes never write while they read: they compute a list of
// Commands from a snapshot, enqueue them, and a single Flush commits the
// queue in FIFO order. Every method serialises on one mutex, so there is a
// single logical writer at any time.
//
// Persistence goes through a KV collaborator. Values are obfuscated by Codec
// before they are written; legacy plaintext JSON is read back unchanged.
package store
