// Package catalog loads and prepares the per-scenario item catalog: raw CSV
// rows become canonical items, duration-dependent quantities are scaled,
// infeasible items are filtered out, and the per-item utility coefficient is
// cached before model construction.
package catalog

// Item is one catalog row in canonical form. The single-letter aliases in the
// comments are the column names of the source datasets.
type Item struct {
	Name         string  // Item
	Value        float64 // b: utility per requirement-unit satisfied
	Weight       float64 // c: weight per physical unit
	Volume       float64 // v: volume per physical unit
	Transferable int     // t: 1 = splittable freely, 0 = at most one unit per carrier
	MinCoverage  float64 // l: minimum requirement-units that must be covered in aggregate
	Requirement  float64 // r: total requirement-units needed by the squad
	Shareability float64 // a: requirement-units satisfied per physical unit carried

	// Coef is the utility coefficient b*a/r, set during preparation.
	Coef float64
}

// MaxUnits is the per-item ceiling on physical units drawn across the whole
// squad: floor(r/a), truncating toward zero.
func (it Item) MaxUnits() int {
	if it.Shareability == 0 {
		return 0
	}
	return int(it.Requirement / it.Shareability)
}

// Drop records an item removed by the feasibility filter.
type Drop struct {
	Item   string
	Reason string
}

// Prepared is the immutable per-scenario catalog: retained items (scaled,
// with Coef set), the filter's drop records, and the derived per-carrier
// capacities.
type Prepared struct {
	Items     []Item
	Dropped   []Drop
	SquadSize int
	Duration  int
	WeightCap float64 // w = w_base * duration
	VolumeCap float64 // q = max(q_base * duration, total retained volume / K)
}
