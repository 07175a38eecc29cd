package experiment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headline-goat/funnel-goat/internal/experiment"
)

func heroCTA() experiment.Experiment {
	return experiment.Experiment{
		ID:     "hero-cta",
		Name:   "Hero CTA copy",
		Status: experiment.StatusActive,
		Variants: []experiment.Variant{
			{ID: "control", Weight: 1},
			{ID: "urgent", Weight: 1},
		},
	}
}

func TestNewRegistry_Valid(t *testing.T) {
	r, err := experiment.NewRegistry([]experiment.Experiment{heroCTA()})
	require.NoError(t, err)

	e, ok := r.Get("hero-cta")
	require.True(t, ok)
	assert.Equal(t, "Hero CTA copy", e.Name)
	assert.Equal(t, 2.0, e.TotalWeight())
	assert.True(t, e.HasVariant("urgent"))
	assert.False(t, e.HasVariant("missing"))
	assert.Equal(t, []string{"hero-cta"}, r.IDs())
	assert.Equal(t, 1, r.Len())
}

func TestNewRegistry_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*experiment.Experiment)
	}{
		{"missing id", func(e *experiment.Experiment) { e.ID = "" }},
		{"bad status", func(e *experiment.Experiment) { e.Status = "running" }},
		{"no variants", func(e *experiment.Experiment) { e.Variants = nil }},
		{"duplicate variant", func(e *experiment.Experiment) { e.Variants[1].ID = "control" }},
		{"zero weight", func(e *experiment.Experiment) { e.Variants[0].Weight = 0 }},
		{"negative weight", func(e *experiment.Experiment) { e.Variants[1].Weight = -2 }},
		{"empty variant id", func(e *experiment.Experiment) { e.Variants[0].ID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := heroCTA()
			tt.mutate(&e)
			_, err := experiment.NewRegistry([]experiment.Experiment{e})
			require.ErrorIs(t, err, experiment.ErrInvalidRegistry)
		})
	}
}

func TestNewRegistry_DuplicateExperiment(t *testing.T) {
	_, err := experiment.NewRegistry([]experiment.Experiment{heroCTA(), heroCTA()})
	require.ErrorIs(t, err, experiment.ErrInvalidRegistry)
}

func TestRegistry_IsImmutable(t *testing.T) {
	source := []experiment.Experiment{heroCTA()}
	r, err := experiment.NewRegistry(source)
	require.NoError(t, err)

	source[0].Variants[0].Weight = 99
	got, _ := r.Get("hero-cta")
	got.Variants[1].Weight = 42

	again, _ := r.Get("hero-cta")
	assert.Equal(t, 1.0, again.Variants[0].Weight)
	assert.Equal(t, 1.0, again.Variants[1].Weight)
}
