package catalog

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdelgatto/packmule/internal/modules/params"
)

func testParams() params.Params {
	return params.Params{
		WeightCapacity: 100,
		VolumeCapacity: 75,
		WeightPenalty:  0.2,
		VolumePenalty:  0.001,
	}
}

func TestPrepare_ScalingAndCoef(t *testing.T) {
	items := []Item{
		{Name: "Water", Value: 10, Weight: 2, Volume: 1, Transferable: 1, MinCoverage: 4, Requirement: 20, Shareability: 1},
	}

	prepared, err := Prepare(items, 2, 3, testParams(), zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, prepared.Items, 1)

	water := prepared.Items[0]
	assert.Equal(t, 60.0, water.Requirement, "requirement scales with duration")
	assert.Equal(t, 12.0, water.MinCoverage, "coverage floor scales with duration")
	assert.InDelta(t, 10.0*1/60.0, water.Coef, 1e-12)
	assert.Equal(t, 300.0, prepared.WeightCap)
	assert.Equal(t, 225.0, prepared.VolumeCap)

	// Input slice stays untouched
	assert.Equal(t, 20.0, items[0].Requirement)
	assert.Zero(t, items[0].Coef)
}

func TestPrepare_WorkedExample(t *testing.T) {
	items := []Item{
		{Name: "Water", Value: 10, Weight: 2, Volume: 1, Transferable: 1, MinCoverage: 0, Requirement: 20, Shareability: 1},
	}

	prepared, err := Prepare(items, 2, 1, testParams(), zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, prepared.Items, 1)

	assert.InDelta(t, 0.5, prepared.Items[0].Coef, 1e-12, "coef = b*a/r = 10*1/20")
	assert.Equal(t, 100.0, prepared.WeightCap)
	assert.Equal(t, 75.0, prepared.VolumeCap)
	assert.Equal(t, 20, prepared.Items[0].MaxUnits())
}

func TestPrepare_FilteringLaw(t *testing.T) {
	// A non-transferable item whose requirement is below the squad size can
	// never appear in the prepared catalog, whatever the squad size.
	for _, k := range []int{1, 2, 4, 8, 12} {
		items := []Item{
			{Name: "Radio", Value: 6, Weight: 3, Volume: 2, Transferable: 0, Requirement: float64(k) - 0.5, Shareability: 0.25},
			{Name: "Water", Value: 10, Weight: 2, Volume: 1, Transferable: 1, Requirement: 100, Shareability: 1},
		}

		prepared, err := Prepare(items, k, 1, testParams(), zerolog.Nop())
		require.NoError(t, err)

		for _, it := range prepared.Items {
			assert.NotEqual(t, "Radio", it.Name, "K=%d: infeasible non-transferable item must be dropped", k)
		}
		require.Len(t, prepared.Dropped, 1, "K=%d", k)
		assert.Equal(t, "Radio", prepared.Dropped[0].Item)
	}
}

func TestPrepare_BoundaryRequirementEqualsSquadSize(t *testing.T) {
	// The filter is strict: r == K keeps the item.
	items := []Item{
		{Name: "Radio", Value: 6, Weight: 3, Volume: 2, Transferable: 0, Requirement: 4, Shareability: 1},
	}

	prepared, err := Prepare(items, 4, 1, testParams(), zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, prepared.Items, 1)
	assert.Equal(t, "Radio", prepared.Items[0].Name)
	assert.Empty(t, prepared.Dropped)
}

func TestPrepare_DropsShareabilityAboveRequirement(t *testing.T) {
	items := []Item{
		{Name: "Tent", Value: 5, Weight: 8, Volume: 6, Transferable: 1, Requirement: 2, Shareability: 4},
		{Name: "Water", Value: 10, Weight: 2, Volume: 1, Transferable: 1, Requirement: 100, Shareability: 1},
	}

	prepared, err := Prepare(items, 4, 1, testParams(), zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, prepared.Items, 1)
	assert.Equal(t, "Water", prepared.Items[0].Name)
	require.Len(t, prepared.Dropped, 1)
	assert.Equal(t, "Tent", prepared.Dropped[0].Item)
	assert.Contains(t, prepared.Dropped[0].Reason, "shareability")
}

func TestPrepare_ZeroRequirementCoef(t *testing.T) {
	// r == 0 yields coefficient 0 rather than a division fault. Reachable
	// only with a == 0 too (the filter drops a > r), so construct directly.
	items := []Item{
		{Name: "Token", Value: 10, Transferable: 1, Requirement: 0, Shareability: 0},
	}

	prepared, err := Prepare(items, 2, 1, testParams(), zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, prepared.Items, 1)
	assert.Zero(t, prepared.Items[0].Coef)
}

func TestPrepare_VolumeCapacityUsesRetainedVolume(t *testing.T) {
	// When the catalog's unit volume spread across the squad exceeds the base
	// capacity, the spread wins. Dropped items don't count toward it.
	items := []Item{
		{Name: "Crate", Value: 1, Weight: 1, Volume: 400, Transferable: 1, Requirement: 10, Shareability: 1},
		{Name: "Dropped", Value: 1, Weight: 1, Volume: 1000, Transferable: 0, Requirement: 1, Shareability: 1},
	}

	prepared, err := Prepare(items, 2, 1, testParams(), zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, prepared.Items, 1)
	assert.Equal(t, 200.0, prepared.VolumeCap, "400/2 beats the base 75, dropped item's 1000 excluded")
}

func TestPrepare_InputErrors(t *testing.T) {
	items := []Item{{Name: "Water", Value: 10, Requirement: 20, Shareability: 1, Transferable: 1}}

	_, err := Prepare(items, 0, 1, testParams(), zerolog.Nop())
	assert.Error(t, err, "non-positive squad size")

	_, err = Prepare(items, 4, 0, testParams(), zerolog.Nop())
	assert.Error(t, err, "non-positive duration")

	_, err = Prepare(nil, 4, 1, testParams(), zerolog.Nop())
	assert.Error(t, err, "empty catalog")
}

func TestItem_MaxUnits(t *testing.T) {
	tests := []struct {
		name     string
		item     Item
		expected int
	}{
		{"exact division", Item{Requirement: 20, Shareability: 2}, 10},
		{"truncates toward zero", Item{Requirement: 21, Shareability: 2}, 10},
		{"fractional shareability", Item{Requirement: 10, Shareability: 0.4}, 25},
		{"zero shareability", Item{Requirement: 10, Shareability: 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.item.MaxUnits())
		})
	}
}
