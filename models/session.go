package models

// Session is the per-client held state: what the client is looking at, its
// cart and the location it shops for.
type Session struct {
	UserID            string     `json:"userId" bson:"userId"`
	View              string     `json:"view" bson:"view"` // current screen
	SelectedProductID string     `json:"selectedProductId,omitempty" bson:"selectedProductId,omitempty"`
	PendingTotal      float64    `json:"pendingTotal" bson:"pendingTotal"` // checkout in progress
	Cart              []CartItem `json:"cart" bson:"cart"`
	SelectedAddress   *Address   `json:"selectedAddress,omitempty" bson:"selectedAddress,omitempty"`
}

const ViewHome = "home"

// NewSession returns an empty session on the home view.
func NewSession(userID string) *Session {
	return &Session{UserID: userID, View: ViewHome, Cart: []CartItem{}}
}

// Clone returns a deep copy safe to read while the original is mutated.
func (s *Session) Clone() *Session {
	c := *s
	c.Cart = append([]CartItem{}, s.Cart...)
	c.SelectedAddress = s.SelectedAddress.Clone()
	return &c
}

// CrashState is the persisted crash-loop counter for one client.
type CrashState struct {
	Count int `json:"count" bson:"count"`
}
