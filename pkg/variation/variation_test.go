package variation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recommend(vs ...Variation) Recommender {
	return RecommenderFunc(func(context.Context) ([]Variation, error) {
		return vs, nil
	})
}

func TestNew_NominalSpellings(t *testing.T) {
	assert.True(t, New("").IsNominal())
	assert.True(t, New("nominal").IsNominal())
	assert.True(t, New(" Nominal ").IsNominal())
	assert.False(t, New("JES__1up").IsNominal())
	assert.Equal(t, "nominal", Nominal.String())
}

func TestSystematic(t *testing.T) {
	tests := []struct {
		v         Variation
		name      string
		direction int
		ok        bool
	}{
		{Up("JES"), "JES", 1, true},
		{Down("MUON_SCALE"), "MUON_SCALE", -1, true},
		{Nominal, "", 0, false},
		{New("custom"), "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.v.String(), func(t *testing.T) {
			name, dir, ok := tt.v.Systematic()
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.direction, dir)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestResolve_DisabledIsNominalOnly(t *testing.T) {
	called := false
	r := RecommenderFunc(func(context.Context) ([]Variation, error) {
		called = true
		return []Variation{Nominal, Up("JES"), Down("JES")}, nil
	})

	set, err := Resolve(context.Background(), false, r)
	require.NoError(t, err)

	assert.Equal(t, []Variation{Nominal}, set.All())
	assert.False(t, called, "recommender must not be consulted when systematics are disabled")
}

func TestResolve_EnabledKeepsReportedOrder(t *testing.T) {
	reported := []Variation{Nominal, Up("JES"), Down("JES"), Up("EG_SCALE"), Down("EG_SCALE")}

	set, err := Resolve(context.Background(), true, recommend(reported...))
	require.NoError(t, err)

	assert.Equal(t, len(reported), set.Len())
	assert.Equal(t, reported, set.All())
	assert.Equal(t, []string{"nominal", "JES__1up", "JES__1down", "EG_SCALE__1up", "EG_SCALE__1down"}, set.Names())
}

func TestResolve_EnabledAddsMissingNominal(t *testing.T) {
	set, err := Resolve(context.Background(), true, recommend(Up("JES"), Down("JES")))
	require.NoError(t, err)

	assert.Equal(t, []Variation{Nominal, Up("JES"), Down("JES")}, set.All())
}

func TestResolve_DropsDuplicates(t *testing.T) {
	set, err := Resolve(context.Background(), true, recommend(Nominal, Up("JES"), Up("JES"), New("nominal")))
	require.NoError(t, err)

	assert.Equal(t, []Variation{Nominal, Up("JES")}, set.All())
}

func TestResolve_RecommenderFailure(t *testing.T) {
	want := errors.New("calibration database unavailable")
	r := RecommenderFunc(func(context.Context) ([]Variation, error) { return nil, want })

	_, err := Resolve(context.Background(), true, r)
	assert.ErrorIs(t, err, want)

	_, err = Resolve(context.Background(), true, nil)
	assert.Error(t, err)
}

func TestSet_IsImmutable(t *testing.T) {
	set := NewSet(Nominal, Up("JES"))

	all := set.All()
	all[1] = Down("JES")

	assert.Equal(t, Up("JES"), set.At(1))
}

func TestSet_ZeroValueIsNominal(t *testing.T) {
	var set Set

	assert.Equal(t, 1, set.Len())
	assert.Equal(t, Nominal, set.At(0))
	assert.True(t, set.Contains(Nominal))
}

func TestVariation_TextRoundTrip(t *testing.T) {
	var v Variation
	require.NoError(t, v.UnmarshalText([]byte("JES__1up")))
	assert.Equal(t, Up("JES"), v)

	text, err := Nominal.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "nominal", string(text))
}
