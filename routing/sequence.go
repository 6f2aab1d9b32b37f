// Package routing orders a delivery agent's stops with a nearest-neighbour
// heuristic.
//
// The route is greedy and therefore not globally optimal. Each step scans
// every unvisited stop, so a batch costs O(n²); batches are one agent's daily
// load, not city-scale.
package routing

import (
	"hash/fnv"
	"math"

	"bazaar/models"
)

const earthRadiusKm = 6371.0

// Reference is the point synthesized coordinates scatter around.
var Reference = models.GeoPoint{Lat: 19.0760, Lng: 72.8777}

// maxOffset bounds synthesized coordinates to ±0.05° around Reference.
const maxOffset = 0.05

// Haversine returns the great-circle distance between a and b in kilometres.
func Haversine(a, b models.GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Synthesize derives a stable stand-in coordinate from an order id. The
// FNV-1a 64-bit digest is split into two 16-bit fields; each maps linearly
// onto [-maxOffset, +maxOffset] degrees around Reference. Only integer
// arithmetic feeds the offsets, so every platform yields the same point.
func Synthesize(id string) models.GeoPoint {
	h := fnv.New64a()
	h.Write([]byte(id))
	v := h.Sum64()

	latBits := v & 0xffff
	lngBits := (v >> 16) & 0xffff
	return models.GeoPoint{
		Lat: Reference.Lat + offset(latBits),
		Lng: Reference.Lng + offset(lngBits),
	}
}

func offset(bits uint64) float64 {
	return (float64(bits)/0xffff*2 - 1) * maxOffset
}

// Coordinate is the order's delivery point, synthesized when missing.
func Coordinate(o *models.Order) models.GeoPoint {
	if loc := o.DeliveryAddress.Location; loc != nil {
		return *loc
	}
	return Synthesize(o.ID)
}

// Sequence returns a permutation of orders that starts at the first order
// and repeatedly visits the nearest unvisited stop. Ties keep input order.
func Sequence(orders []models.Order) []models.Order {
	if len(orders) <= 1 {
		return orders
	}

	points := make([]models.GeoPoint, len(orders))
	for i := range orders {
		points[i] = Coordinate(&orders[i])
	}

	remaining := make([]int, 0, len(orders)-1)
	for i := 1; i < len(orders); i++ {
		remaining = append(remaining, i)
	}

	route := make([]models.Order, 0, len(orders))
	route = append(route, orders[0])
	current := 0
	for len(remaining) > 0 {
		best := 0
		bestDist := math.Inf(1)
		for j, idx := range remaining {
			d := Haversine(points[current], points[idx])
			if d < bestDist {
				best, bestDist = j, d
			}
		}
		current = remaining[best]
		route = append(route, orders[current])
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return route
}
