package integrity

import (
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"bazaar/geoinv"
	"bazaar/models"
)

type FindingKind string

const (
	FindingInjection    FindingKind = "injection"
	FindingLogicBomb    FindingKind = "logic_bomb"
	FindingOrphan       FindingKind = "orphan"
	FindingRuleConflict FindingKind = "rule_conflict"
)

// Finding is one issue detected by Scan.
type Finding struct {
	Kind       FindingKind `json:"kind"`
	Collection string      `json:"collection"`
	ID         string      `json:"id"`
	Field      string      `json:"field,omitempty"`
	Detail     string      `json:"detail"`
}

var injectionMarkers = []string{"<script", "javascript:", "onerror=", "onload=", "<iframe"}

var (
	scriptBlock = regexp.MustCompile(`(?is)<\s*script[^>]*>.*?<\s*/\s*script\s*>`)
	anyTag      = regexp.MustCompile(`(?s)<[^>]*>`)
	markers     = markerPattern(injectionMarkers)
)

// markerPattern matches any marker with arbitrary whitespace between its
// characters, the same forms Suspicious detects.
func markerPattern(ms []string) *regexp.Regexp {
	alts := make([]string, 0, len(ms))
	for _, m := range ms {
		chars := make([]string, 0, len(m))
		for _, r := range m {
			chars = append(chars, regexp.QuoteMeta(string(r)))
		}
		alts = append(alts, strings.Join(chars, `[\s\v\x{85}\p{Z}]*`))
	}
	return regexp.MustCompile(`(?i)(` + strings.Join(alts, "|") + `)`)
}

// Suspicious reports whether s carries a script-injection marker.
func Suspicious(s string) bool {
	l := strings.ToLower(s)
	l = strings.Join(strings.Fields(l), "")
	for _, m := range injectionMarkers {
		if strings.Contains(l, m) {
			return true
		}
	}
	return false
}

// Sanitize strips script blocks, markup, javascript: URLs and inline event
// handlers from s. The result is never Suspicious.
func Sanitize(s string) string {
	s = scriptBlock.ReplaceAllString(s, "")
	s = anyTag.ReplaceAllString(s, "")
	// Removing one marker can join the text around it into another.
	for {
		next := markers.ReplaceAllString(s, "")
		if next == s {
			break
		}
		s = next
	}
	return strings.TrimSpace(s)
}

// textField addresses one free-text value inside a document, possibly inside
// a nested array of sub-documents (e.g. addresses[].details).
type textField struct {
	array string
	field string
}

func (f textField) String() string {
	if f.array == "" {
		return f.field
	}
	return f.array + "[]." + f.field
}

var freeText = map[string][]textField{
	"users": {
		{field: "name"}, {field: "businessName"}, {field: "email"},
		{array: "addresses", field: "label"}, {array: "addresses", field: "details"},
	},
	"products": {
		{field: "name"}, {field: "description"}, {field: "category"},
		{array: "reviews", field: "comment"},
	},
	"orders": {
		{field: "paymentMethod"}, {array: "items", field: "name"},
	},
}

// Scan detects script injection in free text, negative prices or stock
// ("logic bombs"), orders whose user no longer exists, and inventory rules
// shadowed by an earlier rule for the same location. Nothing is modified.
func Scan(users, products, orders []bson.M) []Finding {
	var out []Finding
	out = append(out, scanText("users", users)...)
	out = append(out, scanText("products", products)...)
	out = append(out, scanText("orders", orders)...)

	for _, p := range products {
		out = append(out, scanLogicBombs(p)...)
	}

	known := make(map[string]bool, len(users))
	for _, u := range users {
		known[identity(u)] = true
	}
	for _, o := range orders {
		uid := str(o["userId"])
		if !known[uid] {
			out = append(out, Finding{
				Kind: FindingOrphan, Collection: "orders", ID: identity(o), Field: "userId",
				Detail: fmt.Sprintf("references missing user %q", uid),
			})
		}
	}

	for _, p := range products {
		for _, c := range geoinv.Conflicts(rulesOf(p)) {
			out = append(out, Finding{
				Kind: FindingRuleConflict, Collection: "products", ID: identity(p), Field: "inventoryRules",
				Detail: c.String(),
			})
		}
	}
	return out
}

func scanText(collection string, docs []bson.M) []Finding {
	var out []Finding
	for _, d := range docs {
		for _, f := range freeText[collection] {
			for _, v := range textValues(d, f) {
				if Suspicious(v) {
					out = append(out, Finding{
						Kind: FindingInjection, Collection: collection, ID: identity(d), Field: f.String(),
						Detail: "script content in free text",
					})
					break
				}
			}
		}
	}
	return out
}

func textValues(d bson.M, f textField) []string {
	if f.array == "" {
		return []string{str(d[f.field])}
	}
	arr, ok := asArray(d[f.array])
	if !ok {
		return nil
	}
	var out []string
	for _, raw := range arr {
		if sub, ok := asDoc(raw); ok {
			out = append(out, str(sub[f.field]))
		}
	}
	return out
}

func scanLogicBombs(p bson.M) []Finding {
	var out []Finding
	check := func(field, owner string, doc bson.M) {
		for _, k := range []string{"price", "stock"} {
			if n, ok := number(doc[k]); ok && n < 0 {
				out = append(out, Finding{
					Kind: FindingLogicBomb, Collection: "products", ID: identity(p), Field: field,
					Detail: fmt.Sprintf("negative %s %v on %s", k, n, owner),
				})
			}
		}
	}
	if arr, ok := asArray(p["variants"]); ok {
		for _, raw := range arr {
			if v, ok := asDoc(raw); ok {
				check("variants", "variant "+str(v["id"]), v)
			}
		}
	}
	if arr, ok := asArray(p["inventoryRules"]); ok {
		for _, raw := range arr {
			if r, ok := asDoc(raw); ok {
				check("inventoryRules", "rule "+str(r["id"]), r)
			}
		}
	}
	return out
}

func rulesOf(p bson.M) []models.InventoryRule {
	arr, ok := asArray(p["inventoryRules"])
	if !ok {
		return nil
	}
	rules := make([]models.InventoryRule, 0, len(arr))
	for _, raw := range arr {
		r, ok := asDoc(raw)
		if !ok {
			continue
		}
		rules = append(rules, models.InventoryRule{
			ID:           str(r["id"]),
			VariantID:    str(r["variantId"]),
			Scope:        models.Scope(str(r["scope"])),
			LocationName: str(r["locationName"]),
		})
	}
	return rules
}
