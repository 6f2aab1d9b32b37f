package store

import (
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"

	"bazaar/cart"
	"bazaar/integrity"
	"bazaar/models"
)

// Flush commits every queued command and returns how many were applied.
func (s *Store) Flush() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Store) flushLocked() int {
	n := 0
	for {
		cmd, ok := s.queue.TryDequeue()
		if !ok {
			return n
		}
		s.applyLocked(cmd)
		n++
	}
}

func (s *Store) applyLocked(cmd Command) {
	switch cmd.Kind {
	case CmdPatchCart:
		sess := s.sessionLocked(cmd.UserID)
		sess.Cart = cart.Apply(sess.Cart, cmd.Patches)
	case CmdReplaceCollections:
		s.users = cmd.Users
		s.products = cmd.Products
		s.orders = cmd.Orders
	case CmdResetNavigation:
		sess := s.sessionLocked(cmd.UserID)
		sess.View = models.ViewHome
		sess.SelectedProductID = ""
		sess.PendingTotal = 0
	case CmdClearCartAndLocation:
		sess := s.sessionLocked(cmd.UserID)
		sess.Cart = []models.CartItem{}
		sess.SelectedAddress = nil
	case CmdClearPending:
		for _, sess := range s.sessions {
			sess.PendingTotal = 0
			sess.SelectedProductID = ""
		}
	default:
		log.Printf("[store] ignoring unknown command %d", cmd.Kind)
	}
}

// ReconcileCart brings the client's cart in line with the catalog at the
// selected address. Running it again without intervening changes is a no-op.
func (s *Store) ReconcileCart(userID string) cart.Pass {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconcileCartLocked(userID)
}

func (s *Store) reconcileCartLocked(userID string) cart.Pass {
	sess, ok := s.sessions[userID]
	if !ok {
		return cart.Pass{}
	}
	pass := cart.Reconcile(s.products, sess.Cart, sess.SelectedAddress)
	if pass.Clean() {
		return pass
	}
	s.queue.Enqueue(Command{Kind: CmdPatchCart, UserID: userID, Patches: pass.Patches})
	s.flushLocked()
	log.Printf("[cart] reconciled cart of %s: %d patch(es), %d notice(s)", userID, len(pass.Patches), len(pass.Notices))
	return pass
}

// ReconcileAllCarts runs the cart pass for every session.
func (s *Store) ReconcileAllCarts() map[string]cart.Pass {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]cart.Pass)
	for id := range s.sessions {
		if pass := s.reconcileCartLocked(id); !pass.Clean() {
			out[id] = pass
		}
	}
	return out
}

// Repair runs the integrity reconciler over users, products and orders.
func (s *Store) Repair() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repairLocked(s.repair.Reconcile)
}

// DiagnoseAndFix runs the security and content scan, resolves what it finds,
// then repairs.
func (s *Store) DiagnoseAndFix() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repairLocked(s.repair.DiagnoseAndFix)
}

// SafeCleanup clears session-scoped checkout state, then repairs.
func (s *Store) SafeCleanup() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := 0
	for _, sess := range s.sessions {
		if sess.PendingTotal != 0 || sess.SelectedProductID != "" {
			pending++
		}
	}
	s.queue.Enqueue(Command{Kind: CmdClearPending})
	s.flushLocked()

	out, err := s.repairLocked(s.repair.Reconcile)
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		out = append([]string{fmt.Sprintf("Sessions: cleared pending checkout state of %d session(s)", pending)}, out...)
	}
	return out, nil
}

type pass func(users, products, orders []bson.M) integrity.Result

func (s *Store) repairLocked(run pass) ([]string, error) {
	users, err := toDocs(s.users)
	if err != nil {
		return nil, err
	}
	products, err := toDocs(s.products)
	if err != nil {
		return nil, err
	}
	orders, err := toDocs(s.orders)
	if err != nil {
		return nil, err
	}

	res := run(users, products, orders)
	if res.Healthy() {
		return res.Log, nil
	}

	cmd, lines := decodeAll(res)
	s.queue.Enqueue(cmd)
	s.flushLocked()
	log.Printf("[integrity] applied %d fix(es)", len(lines))
	return lines, nil
}

// ResetNavigation returns the client to the home screen and drops any
// pending checkout.
func (s *Store) ResetNavigation(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.Enqueue(Command{Kind: CmdResetNavigation, UserID: userID})
	s.flushLocked()
}

// ClearCartAndLocation empties the client's cart and selected address.
func (s *Store) ClearCartAndLocation(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.Enqueue(Command{Kind: CmdClearCartAndLocation, UserID: userID})
	s.flushLocked()
}

// ResetSession wipes all held state of one client.
func (s *Store) ResetSession(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}
