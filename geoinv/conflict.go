package geoinv

import (
	"fmt"
	"strings"

	"bazaar/models"
)

// Conflict is a pair of rules that target the same variant, scope and
// location. Resolution silently prefers First; Shadowed never applies.
type Conflict struct {
	VariantID string
	Scope     models.Scope
	Location  string
	First     string
	Shadowed  string
}

func (c Conflict) String() string {
	return fmt.Sprintf("rule %s is shadowed by %s (%s %s for variant %s)",
		c.Shadowed, c.First, c.Scope, c.Location, c.VariantID)
}

func ruleKey(r models.InventoryRule) string {
	loc := strings.TrimSpace(r.LocationName)
	if r.Scope != models.ScopePincode {
		loc = strings.ToLower(loc)
	}
	return r.VariantID + "|" + string(r.Scope) + "|" + loc
}

// Conflicts lists every rule shadowed by an earlier one.
func Conflicts(rules []models.InventoryRule) []Conflict {
	seen := make(map[string]string, len(rules))
	var out []Conflict
	for _, r := range rules {
		k := ruleKey(r)
		if first, ok := seen[k]; ok {
			out = append(out, Conflict{
				VariantID: r.VariantID,
				Scope:     r.Scope,
				Location:  r.LocationName,
				First:     first,
				Shadowed:  r.ID,
			})
			continue
		}
		seen[k] = r.ID
	}
	return out
}

// ConflictsWith reports whether adding candidate to rules would shadow or be
// shadowed by an existing rule with a different id.
func ConflictsWith(rules []models.InventoryRule, candidate models.InventoryRule) (models.InventoryRule, bool) {
	k := ruleKey(candidate)
	for _, r := range rules {
		if r.ID != candidate.ID && ruleKey(r) == k {
			return r, true
		}
	}
	return models.InventoryRule{}, false
}
