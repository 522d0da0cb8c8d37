package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/trainlog/internal/client/config"
	"github.com/dmitrijs2005/trainlog/internal/client/parser"
)

const (
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiReset  = "\033[0m"
)

func (a *App) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
}

func (a *App) colorize(color, s string) string {
	if !a.config.UI.Color {
		return s
	}
	return color + s + ansiReset
}

func (a *App) syncMark(synced bool) string {
	if synced {
		return a.colorize(ansiGreen, "synced")
	}
	return a.colorize(ansiYellow, "pending")
}

func (a *App) formatDate(t time.Time) string {
	return t.Local().Format(a.config.UI.DateFormat)
}

// parseDate reads a date in the configured layout, falling back to
// YYYY-MM-DD, as local time.
func (a *App) parseDate(s string) (time.Time, error) {
	for _, layout := range []string{a.config.UI.DateFormat, time.DateOnly} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, want %s", s, a.config.UI.DateFormat)
}

func (a *App) miles() bool {
	return a.config.Workouts.DistanceUnit == config.DistanceMiles
}

// toKm converts a distance typed in the configured unit.
func (a *App) toKm(v float64) float64 {
	if a.miles() {
		return v * parser.KmPerMile
	}
	return v
}

func (a *App) formatDistance(km *float64) string {
	if km == nil {
		return "-"
	}
	if a.miles() {
		return fmt.Sprintf("%.2f mi", *km/parser.KmPerMile)
	}
	return fmt.Sprintf("%.2f km", *km)
}

func (a *App) formatTotalDistance(km float64) string {
	return a.formatDistance(&km)
}

func formatDuration(min *int) string {
	if min == nil {
		return "-"
	}
	return formatMinutes(*min)
}

func formatMinutes(m int) string {
	if m < 60 {
		return fmt.Sprintf("%d min", m)
	}
	return fmt.Sprintf("%dh %02dm", m/60, m%60)
}

func optional(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// optInt parses an optional integer answer; empty means nil.
func optInt(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("not a whole number: %q", s)
	}
	return &n, nil
}

func optFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("not a number: %q", s)
	}
	return &f, nil
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func writeRow(w io.Writer, cols ...string) {
	fmt.Fprintln(w, strings.Join(cols, "\t"))
}
