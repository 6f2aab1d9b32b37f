package integrity

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"bazaar/models"
)

// HealthyMessage is the single log entry of a pass that fixed nothing.
const HealthyMessage = "System healthy: no integrity issues found."

const uncategorized = "Uncategorized"

// Result holds the repaired collections and one log line per fix.
type Result struct {
	Users    []bson.M `json:"users"`
	Products []bson.M `json:"products"`
	Orders   []bson.M `json:"orders"`
	Log      []string `json:"log"`
}

// Healthy reports whether the pass found nothing to fix.
func (r Result) Healthy() bool {
	return len(r.Log) == 1 && r.Log[0] == HealthyMessage
}

// Reconciler repairs collections. Now stamps orders whose date is unusable.
type Reconciler struct {
	Now func() time.Time
}

func New() *Reconciler {
	return &Reconciler{Now: time.Now}
}

// Reconcile repairs with the wall clock.
func Reconcile(users, products, orders []bson.M) Result {
	return New().Reconcile(users, products, orders)
}

// Reconcile de-duplicates and repairs every collection. Input documents are
// never modified.
func (r *Reconciler) Reconcile(users, products, orders []bson.M) Result {
	var log []string
	res := Result{}

	var fixes []string
	res.Users, fixes = Dedupe("Users", users)
	log = append(log, fixes...)
	for i, u := range res.Users {
		res.Users[i], fixes = repairUser(u)
		log = append(log, fixes...)
	}

	res.Products, fixes = Dedupe("Products", products)
	log = append(log, fixes...)
	for i, p := range res.Products {
		res.Products[i], fixes = repairProduct(p)
		log = append(log, fixes...)
	}

	res.Orders, fixes = Dedupe("Orders", orders)
	log = append(log, fixes...)
	now := r.now()
	for i, o := range res.Orders {
		res.Orders[i], fixes = repairOrder(o, now)
		log = append(log, fixes...)
	}

	if len(log) == 0 {
		log = []string{HealthyMessage}
	}
	res.Log = log
	return res
}

func (r *Reconciler) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// Dedupe keeps the first document per identity and logs every drop.
// Documents without an identity are kept as-is.
func Dedupe(kind string, docs []bson.M) ([]bson.M, []string) {
	seen := make(map[string]bool, len(docs))
	out := make([]bson.M, 0, len(docs))
	var log []string
	for _, d := range docs {
		id := identity(d)
		if id != "" {
			if seen[id] {
				log = append(log, fmt.Sprintf("%s: dropped duplicate record %s", kind, id))
				continue
			}
			seen[id] = true
		}
		out = append(out, clone(d))
	}
	return out, log
}

func repairUser(u bson.M) (bson.M, []string) {
	var log []string
	id := identity(u)

	if blank(u["name"]) {
		name := "Unknown User"
		if id != "" {
			name = "User " + suffix(id, 4)
		}
		u["name"] = name
		log = append(log, fmt.Sprintf("Users: named %s as %q", id, name))
	}

	roles, ok := asArray(u["roles"])
	if ok {
		text := make([]any, 0, len(roles))
		for _, r := range roles {
			if _, isText := r.(string); isText {
				text = append(text, r)
			}
		}
		if len(text) != len(roles) {
			roles = text
			u["roles"] = bson.A(text)
			log = append(log, fmt.Sprintf("Users: dropped non-text roles of %s", id))
		}
	}
	if !ok || len(roles) == 0 {
		role := strings.TrimSpace(str(u["role"]))
		if role == "" {
			role = models.RoleCustomer
		}
		u["roles"] = bson.A{role}
		roles = []any{role}
		log = append(log, fmt.Sprintf("Users: seeded roles of %s from legacy role %q", id, role))
	}

	if hasRole(roles, models.RoleSeller) && blank(u["businessName"]) {
		business := strings.TrimSpace(str(u["name"])) + "'s Store"
		u["businessName"] = business
		log = append(log, fmt.Sprintf("Users: assigned business name %q to seller %s", business, id))
	}

	addrs, ok := asArray(u["addresses"])
	if !ok {
		u["addresses"] = bson.A{}
		log = append(log, fmt.Sprintf("Users: reset malformed addresses of %s", id))
		return u, log
	}
	changed := false
	kept := make(bson.A, 0, len(addrs))
	for i, raw := range addrs {
		a, ok := asDoc(raw)
		if !ok {
			changed = true
			log = append(log, fmt.Sprintf("Users: dropped malformed address %d of %s", i, id))
			continue
		}
		a, fixes := textFields(a, "Users", "address "+str(a["id"])+" of "+id, "id", "label", "details", "pincode", "city", "state")
		if len(fixes) > 0 {
			changed = true
			log = append(log, fixes...)
		}
		kept = append(kept, a)
	}
	if changed {
		u["addresses"] = kept
	}
	return u, log
}

func hasRole(roles []any, role string) bool {
	for _, r := range roles {
		if str(r) == role {
			return true
		}
	}
	return false
}

func repairProduct(p bson.M) (bson.M, []string) {
	var log []string
	id := identity(p)

	if blank(p["category"]) {
		p["category"] = uncategorized
		log = append(log, fmt.Sprintf("Products: set missing category of %s to %s", id, uncategorized))
	}

	for _, field := range []string{"availablePincodes", "imageUrls", "reviews", "inventoryRules"} {
		if _, ok := asArray(p[field]); !ok {
			p[field] = bson.A{}
			log = append(log, fmt.Sprintf("Products: reset malformed %s of %s", field, id))
		}
	}

	variants, ok := asArray(p["variants"])
	if !ok {
		p["variants"] = bson.A{}
		log = append(log, fmt.Sprintf("Products: reset malformed variants of %s", id))
		return p, log
	}
	p["variants"], log = repairOffers(p["variants"], variants, "variant", id, log, "id", "weight")
	if rules, ok := asArray(p["inventoryRules"]); ok {
		p["inventoryRules"], log = repairOffers(p["inventoryRules"], rules, "rule", id, log, "id", "variantId", "scope", "locationName")
	}
	return p, log
}

// repairOffers repairs variants or inventory rules so that each decodes into
// its typed form. Entries that are not documents are dropped.
func repairOffers(orig any, entries []any, kind, productID string, log []string, text ...string) (any, []string) {
	changed := false
	fixed := make(bson.A, 0, len(entries))
	for i, raw := range entries {
		d, ok := asDoc(raw)
		if !ok {
			changed = true
			log = append(log, fmt.Sprintf("Products: dropped malformed %s %d of %s", kind, i, productID))
			continue
		}
		d, fixes := repairOffer(d, kind+" "+str(d["id"])+" on "+productID, kind == "variant", text)
		if len(fixes) > 0 {
			changed = true
			log = append(log, fixes...)
		}
		fixed = append(fixed, d)
	}
	if !changed {
		return orig, log
	}
	return fixed, log
}

// repairOffer fixes the price, stock and discount of one variant or rule.
// NaN or negative prices become 0, unusable stock becomes 0, fractional stock
// is truncated and an unusable discount is removed. A rule may omit its
// price; a variant may not.
func repairOffer(d bson.M, owner string, priceRequired bool, text []string) (bson.M, []string) {
	d, log := textFields(d, "Products", owner, text...)
	_, hasPrice := d["price"]
	if price, ok := finite(d["price"]); (hasPrice || priceRequired) && (!ok || price < 0) {
		d = clone(d)
		d["price"] = 0.0
		log = append(log, fmt.Sprintf("Products: reset invalid price of %s to 0", owner))
	}
	if raw, present := d["stock"]; present && raw != nil {
		stock, ok := finite(raw)
		switch {
		case !ok || stock < 0:
			d = clone(d)
			d["stock"] = 0
			log = append(log, fmt.Sprintf("Products: reset invalid stock of %s to 0", owner))
		case stock != math.Trunc(stock):
			d = clone(d)
			d["stock"] = int(math.Trunc(stock))
			log = append(log, fmt.Sprintf("Products: truncated stock of %s to %d", owner, int(math.Trunc(stock))))
		}
	}
	if raw, present := d["discount"]; present && raw != nil {
		if _, ok := finite(raw); !ok {
			d = clone(d)
			delete(d, "discount")
			log = append(log, fmt.Sprintf("Products: removed invalid discount of %s", owner))
		}
	}
	return d, log
}

// textFields converts scalar values of string fields to text, so that a
// pincode stored as a number still decodes.
func textFields(d bson.M, collection, owner string, fields ...string) (bson.M, []string) {
	var log []string
	for _, f := range fields {
		v, present := d[f]
		if !present || v == nil {
			continue
		}
		if _, ok := v.(string); ok {
			continue
		}
		d = clone(d)
		if n, ok := finite(v); ok {
			d[f] = strconv.FormatFloat(n, 'f', -1, 64)
			log = append(log, fmt.Sprintf("%s: converted %s of %s to text", collection, f, owner))
		} else {
			d[f] = ""
			log = append(log, fmt.Sprintf("%s: cleared malformed %s of %s", collection, f, owner))
		}
	}
	return d, log
}

func repairOrder(o bson.M, now time.Time) (bson.M, []string) {
	var log []string
	id := identity(o)

	items, ok := asArray(o["items"])
	if !ok {
		items = nil
		o["items"] = bson.A{}
		log = append(log, fmt.Sprintf("Orders: items of %s were corrupt and have been reset", id))
	}

	total, ok := finite(o["total"])
	if !ok || total < 0 {
		sum := itemsTotal(items)
		o["total"] = sum
		log = append(log, fmt.Sprintf("Orders: recomputed total of %s to %.2f", id, sum))
	}

	status := str(o["status"])
	if !models.ValidStatus(status) {
		o["status"] = string(models.StatusPlaced)
		log = append(log, fmt.Sprintf("Orders: reset unknown status %q of %s to %s", status, id, models.StatusPlaced))
	}

	switch d := o["date"].(type) {
	case string:
		if _, ok := instant(d); !ok {
			o["date"] = now.UTC().Format(time.RFC3339)
			log = append(log, fmt.Sprintf("Orders: reset invalid date of %s", id))
		}
	default:
		if t, ok := instant(d); ok {
			// Valid but stored as a BSON date; orders keep RFC3339 strings.
			o["date"] = t.UTC().Format(time.RFC3339)
		} else {
			o["date"] = now.UTC().Format(time.RFC3339)
			log = append(log, fmt.Sprintf("Orders: reset invalid date of %s", id))
		}
	}
	return o, log
}

func itemsTotal(items []any) float64 {
	total := 0.0
	for _, raw := range items {
		it, ok := asDoc(raw)
		if !ok {
			continue
		}
		price, ok := finite(it["price"])
		if !ok {
			continue
		}
		qty, ok := finite(it["quantity"])
		if !ok {
			continue
		}
		total += price * qty
	}
	return total
}
