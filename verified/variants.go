package verified

import (
	"sort"
	"strings"

	"speedrun-bot/speedrun"
)

// Variant is a game specific fact read from a run's variable values, such
// as the weapon or aspect used. A variant whose value the run does not carry
// has an empty ValueID.
type Variant struct {
	Name       string
	VariableID string
	ValueID    string
	Label      string
}

func (v Variant) Present() bool {
	return v.ValueID != ""
}

// VariantExtractor picks the variant facts of a run. Implementations return
// one Variant per fact they know about, present or not, in a stable order.
type VariantExtractor interface {
	Extract(run *speedrun.Run, variables map[string]speedrun.Variable) []Variant
}

// NamedVariables extracts variants by variable name. A name matches a
// definition case-insensitively, and also matches suffixed aliases, so
// "Weapon" finds both "Weapon" and "Weapon (OwO)".
type NamedVariables []string

func (n NamedVariables) Extract(run *speedrun.Run, variables map[string]speedrun.Variable) []Variant {
	definitions := mergeVariables(run, variables)
	ids := make([]string, 0, len(definitions))
	for id := range definitions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	variants := make([]Variant, 0, len(n))
	for _, name := range n {
		variant := Variant{Name: name}
		for _, id := range ids {
			definition := definitions[id]
			if !nameMatches(name, definition.Name) {
				continue
			}
			value, ok := run.Values[id]
			if !ok || value == "" {
				continue
			}
			variant.VariableID = id
			variant.ValueID = value
			variant.Label = definition.Label(value)
			break
		}
		variants = append(variants, variant)
	}
	return variants
}

func nameMatches(want, got string) bool {
	if strings.EqualFold(want, got) {
		return true
	}
	prefix := want + " ("
	return len(got) > len(prefix) && strings.EqualFold(got[:len(prefix)], prefix)
}

// mergeVariables overlays the game wide definitions on the ones embedded in
// the run's category.
func mergeVariables(run *speedrun.Run, variables map[string]speedrun.Variable) map[string]speedrun.Variable {
	merged := make(map[string]speedrun.Variable, len(variables)+len(run.Category.Data.Variables.Data))
	for _, variable := range run.Category.Data.Variables.Data {
		merged[variable.ID] = variable
	}
	for id, variable := range variables {
		merged[id] = variable
	}
	return merged
}
