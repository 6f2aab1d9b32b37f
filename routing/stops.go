package routing

import "bazaar/models"

// Stop is one leg of a sequenced route.
type Stop struct {
	Seq     int             `json:"seq"`
	OrderID string          `json:"orderId"`
	Point   models.GeoPoint `json:"point"`
	Leg     float64         `json:"legKm"` // distance from the previous stop
}

// Stops annotates an already-sequenced route with leg distances.
func Stops(route []models.Order) []Stop {
	stops := make([]Stop, 0, len(route))
	var prev models.GeoPoint
	for i := range route {
		p := Coordinate(&route[i])
		leg := 0.0
		if i > 0 {
			leg = Haversine(prev, p)
		}
		stops = append(stops, Stop{Seq: i + 1, OrderID: route[i].ID, Point: p, Leg: leg})
		prev = p
	}
	return stops
}

// Distance is the total length of route in kilometres.
func Distance(route []models.Order) float64 {
	total := 0.0
	for _, s := range Stops(route) {
		total += s.Leg
	}
	return total
}
