package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"bazaar/cart"
	"bazaar/geoinv"
	"bazaar/integrity"
	"bazaar/models"
	"bazaar/utils"
)

// Store is the single owner of held state. Collections are copy-on-write:
// a reducer never edits a slice a reader may hold, it swaps in a new one.
type Store struct {
	mu       sync.Mutex
	products []models.Product
	users    []models.User
	orders   []models.Order
	sessions map[string]*models.Session

	queue  *commandQueue
	kv     KV
	codec  *Codec
	repair *integrity.Reconciler

	// Now is the clock used for order dates and repair timestamps.
	Now func() time.Time
}

// New returns an empty store persisting through kv. A nil kv keeps state in
// memory only.
func New(kv KV, codec *Codec) *Store {
	if kv == nil {
		kv = NewMemoryKV()
	}
	if codec == nil {
		codec = NewCodec("")
	}
	s := &Store{
		sessions: make(map[string]*models.Session),
		queue:    newCommandQueue(),
		kv:       kv,
		codec:    codec,
		Now:      time.Now,
	}
	s.repair = &integrity.Reconciler{Now: func() time.Time { return s.Now() }}
	return s
}

// --- Catalog ---

func (s *Store) Products() []models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products
}

func (s *Store) Product(id string) (models.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.productIndex(id)
	if i < 0 {
		return models.Product{}, false
	}
	return s.products[i], true
}

func (s *Store) productIndex(id string) int {
	for i := range s.products {
		if s.products[i].ID == id {
			return i
		}
	}
	return -1
}

// UpsertProduct inserts or replaces a product. Conflicting inventory rules
// are rejected.
func (s *Store) UpsertProduct(p models.Product) (models.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Normalize()
	if c := geoinv.Conflicts(p.InventoryRules); len(c) > 0 {
		return models.Product{}, fmt.Errorf("%w: %s", ErrRuleConflict, c[0])
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]models.Product, 0, len(s.products)+1)
	replaced := false
	for _, existing := range s.products {
		if existing.ID == p.ID {
			next = append(next, p)
			replaced = true
			continue
		}
		next = append(next, existing)
	}
	if !replaced {
		next = append(next, p)
	}
	s.products = next
	return p, nil
}

func (s *Store) DeleteProduct(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.productIndex(id)
	if i < 0 {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	next := make([]models.Product, 0, len(s.products)-1)
	next = append(next, s.products[:i]...)
	s.products = append(next, s.products[i+1:]...)
	return nil
}

// UpsertRule adds or replaces one inventory rule on a product. A rule that
// would shadow, or be shadowed by, another rule for the same variant, scope
// and location is rejected with ErrRuleConflict.
func (s *Store) UpsertRule(productID string, rule models.InventoryRule) (models.InventoryRule, error) {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	switch rule.Scope {
	case models.ScopePincode, models.ScopeCity, models.ScopeState:
	default:
		return models.InventoryRule{}, fmt.Errorf("unknown scope %q", rule.Scope)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.productIndex(productID)
	if i < 0 {
		return models.InventoryRule{}, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	p := s.products[i]
	if _, ok := p.Variant(rule.VariantID); !ok {
		return models.InventoryRule{}, fmt.Errorf("variant %s: %w", rule.VariantID, ErrNotFound)
	}
	if other, clash := geoinv.ConflictsWith(p.InventoryRules, rule); clash {
		return models.InventoryRule{}, fmt.Errorf("%w: rule %s already covers %s %s", ErrRuleConflict, other.ID, other.Scope, other.LocationName)
	}

	rules := make([]models.InventoryRule, 0, len(p.InventoryRules)+1)
	replaced := false
	for _, r := range p.InventoryRules {
		if r.ID == rule.ID {
			rules = append(rules, rule)
			replaced = true
			continue
		}
		rules = append(rules, r)
	}
	if !replaced {
		rules = append(rules, rule)
	}
	p.InventoryRules = rules

	next := append([]models.Product{}, s.products...)
	next[i] = p
	s.products = next
	return rule, nil
}

// --- Users ---

func (s *Store) Users() []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users
}

func (s *Store) User(id string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return models.User{}, false
}

func (s *Store) UpsertUser(u models.User) models.User {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Roles == nil {
		u.Roles = []string{}
	}
	if u.Addresses == nil {
		u.Addresses = []models.Address{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]models.User, 0, len(s.users)+1)
	replaced := false
	for _, existing := range s.users {
		if existing.ID == u.ID {
			next = append(next, u)
			replaced = true
			continue
		}
		next = append(next, existing)
	}
	if !replaced {
		next = append(next, u)
	}
	s.users = next
	return u
}

// --- Sessions ---

// Session returns a copy of the client's session; unknown clients get a
// fresh empty one.
func (s *Store) Session(userID string) models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[userID]; ok {
		return *sess.Clone()
	}
	return *models.NewSession(userID)
}

func (s *Store) sessionLocked(userID string) *models.Session {
	sess, ok := s.sessions[userID]
	if !ok {
		sess = models.NewSession(userID)
		s.sessions[userID] = sess
	}
	return sess
}

// AddToCart snapshots the variant at its current price for the selected
// location and adds qty to the matching row. The cart is then reconciled, so
// the returned row is clamped to live stock and has zero quantity when the
// variant cannot be bought at that location.
func (s *Store) AddToCart(userID, productID, variantID string, qty int) (models.CartItem, cart.Pass, error) {
	if qty <= 0 {
		return models.CartItem{}, cart.Pass{}, ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.productIndex(productID)
	if i < 0 {
		return models.CartItem{}, cart.Pass{}, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	p := &s.products[i]
	if _, ok := p.Variant(variantID); !ok {
		return models.CartItem{}, cart.Pass{}, fmt.Errorf("variant %s: %w", variantID, ErrNotFound)
	}

	sess := s.sessionLocked(userID)
	live := geoinv.Resolve(p, variantID, sess.SelectedAddress)
	item := models.CartItem{
		ProductID: productID,
		VariantID: variantID,
		Name:      p.Name,
		Weight:    live.Weight,
		Price:     live.Price,
		Image:     p.Image(),
		Quantity:  qty,
	}

	next := make([]models.CartItem, 0, len(sess.Cart)+1)
	merged := false
	for _, it := range sess.Cart {
		if it.Key() == item.Key() {
			item.Quantity += it.Quantity
			it = item
			merged = true
		}
		next = append(next, it)
	}
	if !merged {
		next = append(next, item)
	}
	sess.Cart = next

	pass := s.reconcileCartLocked(userID)
	item.Quantity = 0
	for _, it := range s.sessionLocked(userID).Cart {
		if it.Key() == item.Key() {
			item = it
		}
	}
	return item, pass, nil
}

func (s *Store) RemoveFromCart(userID, productID, variantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessionLocked(userID)
	key := models.CartItem{ProductID: productID, VariantID: variantID}.Key()
	next := make([]models.CartItem, 0, len(sess.Cart))
	for _, it := range sess.Cart {
		if it.Key() != key {
			next = append(next, it)
		}
	}
	sess.Cart = next
}

// SelectAddress sets the location the client shops for; nil clears it.
func (s *Store) SelectAddress(userID string, addr *models.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionLocked(userID).SelectedAddress = addr.Clone()
}

// Navigate records the client's current screen and selected product.
func (s *Store) Navigate(userID, view, productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessionLocked(userID)
	sess.View = view
	sess.SelectedProductID = productID
}

// BeginCheckout records the pending checkout total.
func (s *Store) BeginCheckout(userID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessionLocked(userID)
	if len(sess.Cart) == 0 {
		return 0, ErrEmptyCart
	}
	sess.PendingTotal = models.ItemsTotal(sess.Cart)
	return sess.PendingTotal, nil
}

// --- Orders ---

func (s *Store) Orders() []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders
}

func (s *Store) Order(id string) (models.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.orderIndex(id)
	if i < 0 {
		return models.Order{}, false
	}
	return s.orders[i], true
}

func (s *Store) orderIndex(id string) int {
	for i := range s.orders {
		if s.orders[i].ID == id {
			return i
		}
	}
	return -1
}

// OrdersForAgent lists the agent's orders that still await delivery, in
// placement order.
func (s *Store) OrdersForAgent(agentID string) []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if o.DeliveryAgentID == agentID && o.Status.Active() {
			out = append(out, o)
		}
	}
	return out
}

// PlaceOrder reconciles the cart, then freezes it and the selected address
// into a new order and empties the cart.
func (s *Store) PlaceOrder(userID, paymentMethod string) (models.Order, cart.Pass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pass := s.reconcileCartLocked(userID)
	sess := s.sessionLocked(userID)
	if len(sess.Cart) == 0 {
		return models.Order{}, pass, ErrEmptyCart
	}
	if sess.SelectedAddress == nil {
		return models.Order{}, pass, ErrNoAddress
	}
	if paymentMethod == "" {
		paymentMethod = "COD"
	}

	items := append([]models.CartItem{}, sess.Cart...)
	order := models.Order{
		ID:              "ORD-" + uuid.NewString(),
		UserID:          userID,
		Items:           items,
		Total:           models.ItemsTotal(items),
		Status:          models.StatusPlaced,
		DeliveryAddress: *sess.SelectedAddress.Clone(),
		DeliveryOTP:     utils.GenerateRandomDigitString(4),
		PaymentMethod:   paymentMethod,
		Date:            s.Now().UTC().Format(time.RFC3339),
	}
	next := append(append([]models.Order{}, s.orders...), order)
	s.orders = next

	sess.Cart = []models.CartItem{}
	sess.PendingTotal = 0
	return order, pass, nil
}

// AdvanceOrder moves an order to status if the transition is allowed.
func (s *Store) AdvanceOrder(orderID string, status models.OrderStatus) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.orderIndex(orderID)
	if i < 0 {
		return models.Order{}, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	o := s.orders[i]
	if !models.CanTransition(o.Status, status) {
		return models.Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, status)
	}
	o.Status = status
	s.replaceOrderLocked(i, o)
	return o, nil
}

func (s *Store) AssignAgent(orderID, agentID string) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.orderIndex(orderID)
	if i < 0 {
		return models.Order{}, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	o := s.orders[i]
	if !o.Status.Active() {
		return models.Order{}, fmt.Errorf("%w: order is %s", ErrInvalidTransition, o.Status)
	}
	o.DeliveryAgentID = agentID
	s.replaceOrderLocked(i, o)
	return o, nil
}

func (s *Store) replaceOrderLocked(i int, o models.Order) {
	next := append([]models.Order{}, s.orders...)
	next[i] = o
	s.orders = next
}
