package catalog

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rdelgatto/packmule/internal/modules/params"
)

// Prepare turns a raw catalog into the immutable per-scenario catalog:
// requirement and coverage floor scale with duration, items that cannot be
// carried feasibly are dropped (each drop logged), the utility coefficient is
// cached per item, and per-carrier capacities are derived. The input slice is
// not modified.
func Prepare(items []Item, squadSize, duration int, p params.Params, log zerolog.Logger) (*Prepared, error) {
	if squadSize < 1 {
		return nil, fmt.Errorf("squad size must be positive, got %d", squadSize)
	}
	if duration < 1 {
		return nil, fmt.Errorf("duration must be positive, got %d", duration)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("catalog contains no items")
	}

	d := float64(duration)
	k := float64(squadSize)

	prepared := &Prepared{
		SquadSize: squadSize,
		Duration:  duration,
		Items:     make([]Item, 0, len(items)),
	}

	totalVolume := 0.0
	for _, it := range items {
		it.Requirement *= d
		it.MinCoverage *= d

		// Feasibility filter: shareability cannot exceed the scaled
		// requirement, and a non-transferable item with fewer required
		// units than carriers cannot be covered one-per-carrier.
		if it.Shareability > it.Requirement {
			prepared.Dropped = append(prepared.Dropped, Drop{Item: it.Name, Reason: "shareability exceeds requirement"})
			log.Debug().Str("item", it.Name).Msg("Dropped item: shareability exceeds requirement")
			continue
		}
		if it.Transferable == 0 && it.Requirement < k {
			prepared.Dropped = append(prepared.Dropped, Drop{Item: it.Name, Reason: "non-transferable requirement below squad size"})
			log.Debug().Str("item", it.Name).Msg("Dropped item: non-transferable requirement below squad size")
			continue
		}

		if it.Requirement > 0 {
			it.Coef = it.Value * it.Shareability / it.Requirement
		} else {
			it.Coef = 0
		}

		totalVolume += it.Volume
		prepared.Items = append(prepared.Items, it)
	}

	prepared.WeightCap = p.WeightCapacity * d
	prepared.VolumeCap = p.VolumeCapacity * d
	if spread := totalVolume / k; spread > prepared.VolumeCap {
		prepared.VolumeCap = spread
	}

	if n := len(prepared.Dropped); n > 0 {
		log.Info().
			Int("dropped", n).
			Int("retained", len(prepared.Items)).
			Msg("Filtered infeasible items from catalog")
	}

	return prepared, nil
}
