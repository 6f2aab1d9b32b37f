package store

import (
	"sync"

	"bazaar/cart"
	"bazaar/models"
)

// CommandKind distinguishes queued state changes.
type CommandKind int

const (
	// CmdPatchCart applies cart reconciliation patches to one session.
	CmdPatchCart CommandKind = iota + 1
	// CmdReplaceCollections swaps in repaired users, products and orders.
	CmdReplaceCollections
	// CmdResetNavigation clears the screen, selection and pending checkout.
	CmdResetNavigation
	// CmdClearCartAndLocation empties the cart and forgets the address.
	CmdClearCartAndLocation
	// CmdClearPending drops pending checkout totals and selections in every session.
	CmdClearPending
)

func (k CommandKind) String() string {
	switch k {
	case CmdPatchCart:
		return "patch_cart"
	case CmdReplaceCollections:
		return "replace_collections"
	case CmdResetNavigation:
		return "reset_navigation"
	case CmdClearCartAndLocation:
		return "clear_cart_and_location"
	case CmdClearPending:
		return "clear_pending"
	}
	return "unknown"
}

// Command is one deferred state change produced by a read pass.
type Command struct {
	Kind     CommandKind
	UserID   string
	Patches  []cart.Patch
	Users    []models.User
	Products []models.Product
	Orders   []models.Order
}

// commandQueue is a FIFO of pending commands. Enqueue may be called from any
// goroutine; Flush drains it under the store lock.
type commandQueue struct {
	mu       sync.Mutex
	commands []Command
}

func newCommandQueue() *commandQueue {
	return &commandQueue{commands: make([]Command, 0, 16)}
}

func (q *commandQueue) Enqueue(cmds ...Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.commands = append(q.commands, cmds...)
}

// TryDequeue removes and returns the front command.
func (q *commandQueue) TryDequeue() (Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.commands) == 0 {
		return Command{}, false
	}
	c := q.commands[0]
	// Release references held by the backing array.
	q.commands[0] = Command{}
	if len(q.commands) == 1 {
		q.commands = q.commands[:0]
	} else {
		q.commands = q.commands[1:]
	}
	return c, true
}

func (q *commandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.commands)
}
