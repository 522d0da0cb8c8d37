// Package parser turns free-text workout descriptions such as
// "ran 5 miles in 40 minutes" into structured fields.
package parser

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/trainlog/internal/client/models"
)

// KmPerMile converts miles to kilometres.
const KmPerMile = 1.60934

var ErrUnknownExercise = errors.New("could not detect exercise type from description")

// Result is what a description yields. Missing values stay nil.
type Result struct {
	ExerciseType    string
	DurationMinutes *int
	DistanceKm      *float64
}

type exercisePattern struct {
	exercise string
	re       *regexp.Regexp
}

// Checked in order; the first match wins.
var exercisePatterns = []exercisePattern{
	{models.ExerciseRunning, regexp.MustCompile(`(?i)\b(ran|running|run|jog|jogging|jogged)\b`)},
	{models.ExerciseCycling, regexp.MustCompile(`(?i)\b(cycl(e|ed|ing)|bik(e|ed|ing)|rode|ride)\b`)},
	{models.ExerciseSwimming, regexp.MustCompile(`(?i)\b(swim|swimming|swam)\b`)},
	{models.ExerciseWalking, regexp.MustCompile(`(?i)\b(walk|walking|walked|hike|hiking|hiked)\b`)},
	{models.ExerciseStrength, regexp.MustCompile(`(?i)\b(lift|lifting|lifted|strength|weights?|gym)\b`)},
}

var (
	distanceRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(km|kilomet(?:er|re)s?|mi|miles?|m|met(?:er|re)s?)\b`)
	durationRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(min|mins|minutes?|h|hr|hrs|hours?)\b`)
)

// Parse extracts the exercise type, distance in km and duration in whole
// minutes from description. Only the exercise type is required.
func Parse(description string) (*Result, error) {
	exercise := detectExercise(description)
	if exercise == "" {
		return nil, ErrUnknownExercise
	}
	return &Result{
		ExerciseType:    exercise,
		DistanceKm:      extractDistance(description),
		DurationMinutes: extractDuration(description),
	}, nil
}

func detectExercise(s string) string {
	for _, p := range exercisePatterns {
		if p.re.MatchString(s) {
			return p.exercise
		}
	}
	return ""
}

func extractDistance(s string) *float64 {
	m := distanceRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	unit := strings.ToLower(m[2])
	switch {
	case unit == "km" || strings.HasPrefix(unit, "kilomet"):
	case unit == "mi" || strings.HasPrefix(unit, "mile"):
		v *= KmPerMile
	default:
		v /= 1000
	}
	return &v
}

func extractDuration(s string) *int {
	m := durationRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	if strings.HasPrefix(strings.ToLower(m[2]), "h") {
		v *= 60
	}
	minutes := int(math.Round(v))
	return &minutes
}
