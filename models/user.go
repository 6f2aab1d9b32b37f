package models

const (
	RoleCustomer = "customer"
	RoleSeller   = "seller"
	RoleAdmin    = "admin"
	RoleDelivery = "delivery"
)

type User struct {
	ID           string    `json:"id" bson:"id"`
	Name         string    `json:"name" bson:"name"`
	Email        string    `json:"email" bson:"email"`
	Role         string    `json:"role,omitempty" bson:"role,omitempty"` // legacy singular role
	Roles        []string  `json:"roles" bson:"roles"`
	BusinessName string    `json:"businessName,omitempty" bson:"businessName,omitempty"`
	Addresses    []Address `json:"addresses" bson:"addresses"`
}

// HasRole reports whether the user holds role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Address looks up a saved address by id.
func (u *User) Address(id string) (*Address, bool) {
	for i := range u.Addresses {
		if u.Addresses[i].ID == id {
			return &u.Addresses[i], true
		}
	}
	return nil, false
}
