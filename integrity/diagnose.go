package integrity

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// DiagnoseAndFix scans with the wall clock; see Reconciler.DiagnoseAndFix.
func DiagnoseAndFix(users, products, orders []bson.M) Result {
	return New().DiagnoseAndFix(users, products, orders)
}

// DiagnoseAndFix runs Scan, resolves every finding, and then runs the
// general Reconcile over what is left. Injected text is sanitized, products
// with negative prices or stock and orphaned orders are deleted, and shadowed
// rules are reported since resolution already ignores them. The log holds the
// scan fixes followed by the reconcile fixes.
func (r *Reconciler) DiagnoseAndFix(users, products, orders []bson.M) Result {
	findings := Scan(users, products, orders)
	if len(findings) == 0 {
		return r.Reconcile(users, products, orders)
	}

	users, products, orders = cloneAll(users), cloneAll(products), cloneAll(orders)
	var log []string
	drop := map[string]map[string]bool{"products": {}, "orders": {}}

	for _, f := range findings {
		switch f.Kind {
		case FindingInjection:
			docs := map[string][]bson.M{"users": users, "products": products, "orders": orders}[f.Collection]
			changed := false
			for i, d := range docs {
				if identity(d) == f.ID {
					var did bool
					docs[i], did = sanitizeField(d, f.Field)
					changed = changed || did
				}
			}
			if changed {
				log = append(log, fmt.Sprintf("Security: sanitized %s of %s %s", f.Field, singular(f.Collection), f.ID))
			}
		case FindingLogicBomb:
			if !drop["products"][f.ID] {
				log = append(log, fmt.Sprintf("Logic bomb: deleted product %s (%s)", f.ID, f.Detail))
			}
			drop["products"][f.ID] = true
		case FindingOrphan:
			drop["orders"][f.ID] = true
			log = append(log, fmt.Sprintf("Orphan: deleted order %s (%s)", f.ID, f.Detail))
		case FindingRuleConflict:
			log = append(log, fmt.Sprintf("Warning: product %s %s; the first-declared rule applies", f.ID, f.Detail))
		}
	}

	products = without(products, drop["products"])
	orders = without(orders, drop["orders"])

	res := r.Reconcile(users, products, orders)
	if !res.Healthy() {
		log = append(log, res.Log...)
	}
	res.Log = log
	return res
}

func singular(collection string) string {
	return collection[:len(collection)-1]
}

func without(docs []bson.M, ids map[string]bool) []bson.M {
	if len(ids) == 0 {
		return docs
	}
	out := docs[:0:0]
	for _, d := range docs {
		if !ids[identity(d)] {
			out = append(out, d)
		}
	}
	return out
}

// sanitizeField returns a copy of d with the addressed text field cleaned.
// sanitizeField sanitizes one free-text field of d and reports whether any
// value changed.
func sanitizeField(d bson.M, field string) (bson.M, bool) {
	d = clone(d)
	changed := false
	clean := func(v any) any {
		s, ok := v.(string)
		if !ok {
			return v
		}
		out := Sanitize(s)
		if out != s {
			changed = true
		}
		return out
	}
	for _, fields := range freeText {
		for _, f := range fields {
			if f.String() != field {
				continue
			}
			if f.array == "" {
				if _, ok := d[f.field]; ok {
					d[f.field] = clean(d[f.field])
				}
				return d, changed
			}
			arr, ok := asArray(d[f.array])
			if !ok {
				return d, false
			}
			fixed := make(bson.A, 0, len(arr))
			for _, raw := range arr {
				sub, ok := asDoc(raw)
				if !ok {
					fixed = append(fixed, raw)
					continue
				}
				sub = clone(sub)
				if _, ok := sub[f.field]; ok {
					sub[f.field] = clean(sub[f.field])
				}
				fixed = append(fixed, sub)
			}
			d[f.array] = fixed
			return d, changed
		}
	}
	return d, false
}
