package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in       string
		exercise string
		km       float64 // 0 means absent
		minutes  int     // 0 means absent
	}{
		{"Ran 5 miles in 40 minutes", "running", 5 * KmPerMile, 40},
		{"ran 5km in 30 minutes", "running", 5, 30},
		{"60 min bike ride at 25km", "cycling", 25, 60},
		{"Running 10 kilometers", "running", 10, 0},
		{"Cycled for 45 minutes", "cycling", 0, 45},
		{"Ran for 1.5 hours", "running", 0, 90},
		{"Walked 3 miles", "walking", 3 * KmPerMile, 0},
		{"Strength training for 60 minutes", "strength", 0, 60},
		{"swam 1500m in 35 min", "swimming", 1.5, 35},
		{"swam 800 meters", "swimming", 0.8, 0},
		{"hiked 12.5 km over 3 hrs", "walking", 12.5, 180},
		{"gym session 1h", "strength", 0, 60},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.exercise, got.ExerciseType)

			if tt.km == 0 {
				assert.Nil(t, got.DistanceKm)
			} else {
				require.NotNil(t, got.DistanceKm)
				assert.InDelta(t, tt.km, *got.DistanceKm, 1e-9)
			}
			if tt.minutes == 0 {
				assert.Nil(t, got.DurationMinutes)
			} else {
				require.NotNil(t, got.DurationMinutes)
				assert.Equal(t, tt.minutes, *got.DurationMinutes)
			}
		})
	}
}

func TestParse_UnknownExercise(t *testing.T) {
	_, err := Parse("did some stuff for 20 minutes")
	assert.ErrorIs(t, err, ErrUnknownExercise)
}

func TestParse_MinutesAreNotMeters(t *testing.T) {
	got, err := Parse("ran 30 minutes")
	require.NoError(t, err)
	assert.Nil(t, got.DistanceKm)
	require.NotNil(t, got.DurationMinutes)
	assert.Equal(t, 30, *got.DurationMinutes)
}
