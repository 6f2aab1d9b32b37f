package integrity

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var fixedNow = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func reconciler() *Reconciler {
	return &Reconciler{Now: func() time.Time { return fixedNow }}
}

func healthyUser(id string) bson.M {
	return bson.M{"id": id, "name": "Asha", "roles": bson.A{"customer"}, "addresses": bson.A{}}
}

func healthyProduct(id string) bson.M {
	return bson.M{
		"id": id, "name": "Rice", "category": "Grains",
		"imageUrls": bson.A{}, "availablePincodes": bson.A{}, "reviews": bson.A{}, "inventoryRules": bson.A{},
		"variants": bson.A{bson.M{"id": "v1", "price": 50.0, "stock": 3}},
	}
}

func healthyOrder(id, user string) bson.M {
	return bson.M{
		"id": id, "userId": user, "status": "Placed", "total": 20.0, "date": "2026-10-01T10:00:00Z",
		"items": bson.A{bson.M{"price": 10.0, "quantity": 2}},
	}
}

func TestDedupe_KeepsFirst(t *testing.T) {
	docs := []bson.M{{"id": "a"}, {"id": "a"}, {"id": "b"}}
	out, log := Dedupe("Users", docs)
	assert.Equal(t, []bson.M{{"id": "a"}, {"id": "b"}}, out)
	require.Len(t, log, 1)
	assert.Equal(t, "Users: dropped duplicate record a", log[0])
}

func TestDedupe_FallsBackToObjectID(t *testing.T) {
	oid := primitive.NewObjectID()
	out, log := Dedupe("Orders", []bson.M{{"_id": oid}, {"_id": oid}, {"name": "no id"}, {"name": "no id"}})
	assert.Len(t, out, 3, "documents without identity are kept")
	assert.Len(t, log, 1)
}

func TestReconcile_Healthy(t *testing.T) {
	res := reconciler().Reconcile(
		[]bson.M{healthyUser("u1")},
		[]bson.M{healthyProduct("p1")},
		[]bson.M{healthyOrder("o1", "u1")},
	)
	assert.Equal(t, []string{HealthyMessage}, res.Log)
	assert.True(t, res.Healthy())
}

func TestReconcile_OrderTotalNaN(t *testing.T) {
	o := healthyOrder("o1", "u1")
	o["total"] = math.NaN()
	o["items"] = bson.A{bson.M{"price": 10.0, "quantity": 2}, bson.M{"price": 5.0, "quantity": 1}}

	res := reconciler().Reconcile(nil, nil, []bson.M{o})
	require.Len(t, res.Orders, 1)
	assert.Equal(t, 25.0, res.Orders[0]["total"])
	assert.Equal(t, []string{"Orders: recomputed total of o1 to 25.00"}, res.Log)
	assert.True(t, math.IsNaN(o["total"].(float64)), "input untouched")
}

func TestReconcile_OrderRepairs(t *testing.T) {
	o := bson.M{"id": "o9", "userId": "u1", "items": "garbage", "total": -3, "status": "Shipped", "date": "yesterday"}
	res := reconciler().Reconcile(nil, nil, []bson.M{o})
	got := res.Orders[0]
	assert.Equal(t, bson.A{}, got["items"])
	assert.Equal(t, 0.0, got["total"])
	assert.Equal(t, "Placed", got["status"])
	assert.Equal(t, "2026-10-17T09:30:00Z", got["date"])
	assert.Equal(t, []string{
		"Orders: items of o9 were corrupt and have been reset",
		"Orders: recomputed total of o9 to 0.00",
		`Orders: reset unknown status "Shipped" of o9 to Placed`,
		"Orders: reset invalid date of o9",
	}, res.Log)
}

func TestReconcile_OrderBSONDateNormalizedSilently(t *testing.T) {
	o := healthyOrder("o1", "u1")
	o["date"] = primitive.NewDateTimeFromTime(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	res := reconciler().Reconcile(nil, nil, []bson.M{o})
	assert.Equal(t, "2026-01-02T03:04:05Z", res.Orders[0]["date"])
	assert.True(t, res.Healthy())
}

func TestReconcile_UserRepairs(t *testing.T) {
	users := []bson.M{
		{"id": "user-7f3a", "name": "  ", "role": "seller", "addresses": "n/a"},
		{"id": "u2", "name": "Ravi", "roles": bson.A{}},
	}
	res := reconciler().Reconcile(users, nil, nil)

	u := res.Users[0]
	assert.Equal(t, "User 7f3a", u["name"])
	assert.Equal(t, bson.A{"seller"}, u["roles"])
	assert.Equal(t, "User 7f3a's Store", u["businessName"])
	assert.Equal(t, bson.A{}, u["addresses"])

	assert.Equal(t, bson.A{"customer"}, res.Users[1]["roles"])
	assert.Equal(t, []string{
		`Users: named user-7f3a as "User 7f3a"`,
		`Users: seeded roles of user-7f3a from legacy role "seller"`,
		`Users: assigned business name "User 7f3a's Store" to seller user-7f3a`,
		"Users: reset malformed addresses of user-7f3a",
		`Users: seeded roles of u2 from legacy role "customer"`,
		"Users: reset malformed addresses of u2",
	}, res.Log)
}

func TestReconcile_ProductRepairs(t *testing.T) {
	p := healthyProduct("p1")
	delete(p, "category")
	p["imageUrls"] = "a.jpg"
	p["variants"] = bson.A{
		bson.M{"id": "v1", "price": math.NaN()},
		bson.M{"id": "v2", "price": -1.5},
		bson.M{"id": "v3", "price": 9.0},
	}
	res := reconciler().Reconcile(nil, []bson.M{p}, nil)

	got := res.Products[0]
	assert.Equal(t, "Uncategorized", got["category"])
	assert.Equal(t, bson.A{}, got["imageUrls"])
	variants := got["variants"].(bson.A)
	assert.Equal(t, 0.0, variants[0].(bson.M)["price"])
	assert.Equal(t, 0.0, variants[1].(bson.M)["price"])
	assert.Equal(t, 9.0, variants[2].(bson.M)["price"])
	assert.Equal(t, []string{
		"Products: set missing category of p1 to Uncategorized",
		"Products: reset malformed imageUrls of p1",
		"Products: reset invalid price of variant v1 on p1 to 0",
		"Products: reset invalid price of variant v2 on p1 to 0",
	}, res.Log)
}

func TestReconcile_RuleOfferRepairs(t *testing.T) {
	p := healthyProduct("p1")
	p["inventoryRules"] = bson.A{
		bson.M{"id": "r1", "variantId": "v1", "scope": "CITY", "locationName": "Pune", "price": math.NaN(), "stock": 4},
		bson.M{"id": "r2", "variantId": "v1", "scope": "STATE", "locationName": "Goa", "price": 30.0, "stock": -3},
	}
	r := reconciler()
	res := r.Reconcile(nil, []bson.M{p}, nil)

	rules := res.Products[0]["inventoryRules"].(bson.A)
	assert.Equal(t, 0.0, rules[0].(bson.M)["price"])
	assert.Equal(t, 0, rules[1].(bson.M)["stock"])
	assert.Equal(t, []string{
		"Products: reset invalid price of rule r1 on p1 to 0",
		"Products: reset invalid stock of rule r2 on p1 to 0",
	}, res.Log)
	assert.True(t, r.Reconcile(nil, res.Products, nil).Healthy())
}

func TestReconcile_IsFixedPoint(t *testing.T) {
	r := reconciler()
	first := r.Reconcile(
		[]bson.M{{"id": "u1"}, {"id": "u1"}},
		[]bson.M{{"id": "p1"}},
		[]bson.M{{"id": "o1", "userId": "u1", "total": "x"}},
	)
	require.False(t, first.Healthy())
	second := r.Reconcile(first.Users, first.Products, first.Orders)
	assert.True(t, second.Healthy(), strings.Join(second.Log, "\n"))
}

func TestScan(t *testing.T) {
	users := []bson.M{healthyUser("u1")}
	users[0]["addresses"] = bson.A{bson.M{"details": "Flat 2 <img src=x onerror=alert(1)>"}}
	products := []bson.M{healthyProduct("p1")}
	products[0]["variants"] = bson.A{bson.M{"id": "v1", "price": 5.0, "stock": -2}}
	orders := []bson.M{healthyOrder("o1", "u1"), healthyOrder("o2", "nobody")}

	findings := Scan(users, products, orders)
	require.Len(t, findings, 3)
	assert.Equal(t, FindingInjection, findings[0].Kind)
	assert.Equal(t, "addresses[].details", findings[0].Field)
	assert.Equal(t, FindingLogicBomb, findings[1].Kind)
	assert.Equal(t, "negative stock -2 on variant v1", findings[1].Detail)
	assert.Equal(t, FindingOrphan, findings[2].Kind)
	assert.Equal(t, "o2", findings[2].ID)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "Asha", Sanitize("<script>alert(1)</script>Asha"))
	assert.Equal(t, "Flat 2", Sanitize("Flat 2 <img src=x onerror=alert(1)>"))
	assert.Equal(t, "alert(1)", Sanitize("javascript:alert(1)"))
	assert.False(t, Suspicious(Sanitize(`<iframe src="javascript:x"></iframe>ok`)))
	assert.True(t, Suspicious("<SCRIPT >"))
}

func TestSanitize_SpacedMarkers(t *testing.T) {
	for _, in := range []string{
		`x" on error =alert(1)`,
		"javascript :x",
		"JAVA SCRIPT: x",
		"< script src=x",
		"on\tload = go()",
		"javajavascript:script:x",
	} {
		out := Sanitize(in)
		assert.True(t, Suspicious(in), in)
		assert.False(t, Suspicious(out), "%q sanitized to %q", in, out)
	}
}

func TestDiagnoseAndFix_LeavesNothingToScan(t *testing.T) {
	users := []bson.M{healthyUser("u1")}
	users[0]["name"] = `x" on error =alert(1)`
	users[0]["addresses"] = bson.A{bson.M{"details": "javascript :x"}}

	res := reconciler().DiagnoseAndFix(users, nil, nil)
	assert.Equal(t, []string{
		"Security: sanitized name of user u1",
		"Security: sanitized addresses[].details of user u1",
	}, res.Log)
	assert.Empty(t, Scan(res.Users, res.Products, res.Orders))

	again := reconciler().DiagnoseAndFix(res.Users, res.Products, res.Orders)
	assert.True(t, again.Healthy(), strings.Join(again.Log, "\n"))
}

func TestDiagnoseAndFix_Golden(t *testing.T) {
	users := []bson.M{{
		"id": "u1", "name": "<script>alert(1)</script>Asha", "roles": bson.A{"seller"},
		"businessName": "Asha Farms", "addresses": bson.A{},
	}}
	p2 := healthyProduct("p2")
	p2["category"] = ""
	p2["inventoryRules"] = bson.A{
		bson.M{"id": "r1", "variantId": "v1", "scope": "CITY", "locationName": "Pune"},
		bson.M{"id": "r2", "variantId": "v1", "scope": "CITY", "locationName": "pune"},
	}
	p1 := healthyProduct("p1")
	p1["variants"] = bson.A{bson.M{"id": "v1", "price": -5.0, "stock": 10}}
	o1 := healthyOrder("o1", "u1")
	o1["status"] = "Shipped"
	orders := []bson.M{o1, healthyOrder("o2", "ghost")}

	res := reconciler().DiagnoseAndFix(users, []bson.M{p1, p2}, orders)

	require.Len(t, res.Users, 1)
	assert.Equal(t, "Asha", res.Users[0]["name"])
	require.Len(t, res.Products, 1)
	assert.Equal(t, "p2", res.Products[0]["id"])
	require.Len(t, res.Orders, 1)
	assert.Equal(t, "o1", res.Orders[0]["id"])
	assert.Equal(t, "<script>alert(1)</script>Asha", users[0]["name"], "input untouched")

	g := goldie.New(t)
	g.Assert(t, "diagnose_log", []byte(strings.Join(res.Log, "\n")+"\n"))
}

func TestDiagnoseAndFix_NothingFound(t *testing.T) {
	res := reconciler().DiagnoseAndFix([]bson.M{healthyUser("u1")}, nil, []bson.M{healthyOrder("o1", "u1")})
	assert.Equal(t, []string{HealthyMessage}, res.Log)
}
