package models

// GeoPoint is a WGS84 coordinate in decimal degrees.
type GeoPoint struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// Address is a delivery location. Orders embed a copy taken at placement,
// so later edits to the user's address book never reach placed orders.
type Address struct {
	ID       string    `json:"id" bson:"id"`
	Label    string    `json:"label" bson:"label"` // e.g. "Home", "Office"
	Details  string    `json:"details" bson:"details"`
	Pincode  string    `json:"pincode" bson:"pincode"`
	City     string    `json:"city" bson:"city"`
	State    string    `json:"state" bson:"state"`
	Location *GeoPoint `json:"location,omitempty" bson:"location,omitempty"`
}

// Clone returns a deep copy of the address.
func (a *Address) Clone() *Address {
	if a == nil {
		return nil
	}
	c := *a
	if a.Location != nil {
		loc := *a.Location
		c.Location = &loc
	}
	return &c
}
