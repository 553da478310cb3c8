package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logflow/sweep/internal/model"
	"github.com/logflow/sweep/pkg/transient"
	"github.com/logflow/sweep/pkg/variation"
)

const dilepton = `
name: dilepton
systematics:
  - name: JES
    field: jet_pt
    shift: 0.1
  - name: EG_SCALE
    field: el_pt
    shift: 0.02
derived:
  - name: ht
    op: sum
    of: [jet_pt, el_pt]
  - name: balance
    op: ratio
    of: [el_pt, jet_pt]
selection:
  - field: ht
    min: 100
`

func mustDefinition(t *testing.T, src string) *Definition {
	t.Helper()
	def, err := ParseDefinition([]byte(src))
	require.NoError(t, err)
	return def
}

func event(index int64, jetPt, elPt float64) *model.Event {
	ev := model.NewEvent()
	ev.Index = index
	ev.Fields["jet_pt"] = jetPt
	ev.Fields["el_pt"] = elPt
	return ev
}

func TestParseDefinition_Invalid(t *testing.T) {
	tests := map[string]string{
		"missing field":    "systematics: [{name: JES, shift: 0.1}]",
		"duplicate":        "systematics: [{name: JES, field: a, shift: 0.1}, {name: JES, field: b, shift: 0.1}]",
		"shift range":      "systematics: [{name: JES, field: a, shift: 1.5}]",
		"unknown op":       "derived: [{name: x, op: max, of: [a]}]",
		"ratio arity":      "derived: [{name: x, op: ratio, of: [a]}]",
		"inverted cut":     "selection: [{field: a, min: 5, max: 1}]",
		"not yaml mapping": "- just\n- a list",
	}

	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDefinition([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestCorrections_RecommendedVariations(t *testing.T) {
	c := NewCorrections(mustDefinition(t, dilepton))

	vs, err := c.RecommendedVariations(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []variation.Variation{
		variation.Nominal,
		variation.Up("JES"), variation.Down("JES"),
		variation.Up("EG_SCALE"), variation.Down("EG_SCALE"),
	}, vs)
}

func TestCorrections_ApplyVariation(t *testing.T) {
	c := NewCorrections(mustDefinition(t, dilepton))
	ctx := context.Background()

	require.NoError(t, c.ApplyVariation(ctx, variation.Up("JES")))
	require.NoError(t, c.ApplyVariation(ctx, variation.Up("JES")), "applying twice is idempotent")
	require.NoError(t, c.ApplyVariation(ctx, variation.Nominal))

	assert.Error(t, c.ApplyVariation(ctx, variation.Up("MUON_ID")))
	assert.Error(t, c.ApplyVariation(ctx, variation.New("JES")))
}

func TestCorrections_ProcessShiftsOneField(t *testing.T) {
	c := NewCorrections(mustDefinition(t, dilepton))
	store := transient.New()
	ev := event(0, 100, 50)

	for _, v := range []variation.Variation{variation.Nominal, variation.Up("JES"), variation.Down("JES")} {
		require.NoError(t, c.Process(context.Background(), ev, v, store))
	}

	nominal, err := transient.Retrieve[Quantities](store, KeyCorrected+"nominal")
	require.NoError(t, err)
	up, err := transient.Retrieve[Quantities](store, KeyCorrected+"JES__1up")
	require.NoError(t, err)
	down, err := transient.Retrieve[Quantities](store, KeyCorrected+"JES__1down")
	require.NoError(t, err)

	assert.InDelta(t, 100.0, nominal["jet_pt"], 1e-9)
	assert.InDelta(t, 110.0, up["jet_pt"], 1e-9)
	assert.InDelta(t, 90.0, down["jet_pt"], 1e-9)
	assert.InDelta(t, 50.0, up["el_pt"], 1e-9, "other fields are untouched")
	assert.InDelta(t, 160.0, up["ht"], 1e-9)
	assert.InDelta(t, 0.5, nominal["balance"], 1e-9)

	assert.Equal(t, 100.0, ev.Fields["jet_pt"], "the event view is not modified")
}

func TestCorrections_SelectionAndCutflow(t *testing.T) {
	c := NewCorrections(mustDefinition(t, dilepton))
	ctx := context.Background()
	store := transient.New()

	// ht is 95 nominally and 101 with JES up.
	ev := event(0, 60, 35)
	ev.Weight = 2
	require.NoError(t, c.Process(ctx, ev, variation.Nominal, store))
	require.NoError(t, c.Process(ctx, ev, variation.Up("JES"), store))
	store.Clear()

	require.NoError(t, c.Process(ctx, event(1, 80, 40), variation.Nominal, store))

	selected, err := transient.Retrieve[bool](store, KeySelected+"nominal")
	require.NoError(t, err)
	assert.True(t, selected)

	assert.Equal(t, []Counts{
		{Variation: "nominal", Seen: 2, Passed: 1, SumWeights: 1},
		{Variation: "JES__1up", Seen: 1, Passed: 1, SumWeights: 2},
	}, c.Cutflow())
}

func TestCorrections_StaleStoreIsAnError(t *testing.T) {
	c := NewCorrections(mustDefinition(t, dilepton))
	store := transient.New()

	require.NoError(t, c.Process(context.Background(), event(0, 100, 50), variation.Nominal, store))
	err := c.Process(context.Background(), event(1, 100, 50), variation.Nominal, store)

	assert.Error(t, err, "an uncleared store from the previous event must be detected")
}

func TestCorrections_MissingField(t *testing.T) {
	c := NewCorrections(mustDefinition(t, dilepton))
	ev := model.NewEvent()
	ev.Fields["el_pt"] = 10

	err := c.Process(context.Background(), ev, variation.Up("JES"), transient.New())
	assert.ErrorContains(t, err, "jet_pt")
}

func TestCorrections_RatioDivisionByZero(t *testing.T) {
	c := NewCorrections(mustDefinition(t, dilepton))

	err := c.Process(context.Background(), event(0, 0, 50), variation.Nominal, transient.New())
	assert.ErrorContains(t, err, "division by zero")
}
