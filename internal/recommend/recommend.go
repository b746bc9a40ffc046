// Package recommend picks short, medium and long rides from the routes a rider
// has not completed yet, scaled to how ready the rider is to train.
package recommend

import (
	"math"
	"slices"

	"github.com/ridedeck/ridedeck/internal/ride"
)

// Length is a recommendation bucket.
type Length string

const (
	Short  Length = "short"
	Medium Length = "medium"
	Long   Length = "long"
)

// Lengths lists the buckets in output order.
var Lengths = []Length{Short, Medium, Long}

var baseMinutes = map[Length]float64{
	Short:  30,
	Medium: 60,
	Long:   90,
}

const (
	minReadinessFactor = 0.5
	maxReadinessFactor = 1.5
)

// Impact is the projected progress from riding a recommended route.
type Impact struct {
	ProjectedBadgeCompletionPercent float64 `json:"projectedBadgeCompletionPercent"`
	ProjectedHoursBurndownPercent   float64 `json:"projectedHoursBurndownPercent"`
}

// Recommendation is one suggested route for a bucket.
type Recommendation struct {
	Length Length     `json:"length"`
	Route  ride.Route `json:"route"`
	Impact Impact     `json:"impact"`
}

// Input is everything the engine needs.
type Input struct {
	ReadinessScore    float64
	Routes            []ride.Route
	Badges            []ride.Badge
	AvailableWorldIDs []int
}

// ReadinessFactor scales bucket targets: 0.5 at readiness 0 up to 1.5 at 100.
func ReadinessFactor(readiness float64) float64 {
	return math.Max(minReadinessFactor, math.Min(maxReadinessFactor, 0.5+readiness/100))
}

// Targets returns the target minutes per bucket.
func Targets(readiness float64) map[Length]float64 {
	factor := ReadinessFactor(readiness)
	targets := make(map[Length]float64, len(baseMinutes))
	for length, minutes := range baseMinutes {
		targets[length] = minutes * factor
	}
	return targets
}

// Recommend returns at most one route per bucket, in Short, Medium, Long order.
// Only uncompleted routes in open worlds are considered, and a route is never
// recommended twice. Buckets without a candidate are left out.
func Recommend(in Input) []Recommendation {
	completed := make(map[int]struct{}, len(in.Badges))
	for _, b := range in.Badges {
		completed[b.RouteID] = struct{}{}
	}

	var remaining, eligible []ride.Route
	var remainingMinutes float64
	for _, r := range in.Routes {
		if _, done := completed[r.ID]; done {
			continue
		}
		remaining = append(remaining, r)
		remainingMinutes += float64(r.EstimatedTimeMinutes)
		if slices.Contains(in.AvailableWorldIDs, r.WorldID) {
			eligible = append(eligible, r)
		}
	}

	recommendations := []Recommendation{}
	if len(eligible) == 0 {
		return recommendations
	}

	targets := Targets(in.ReadinessScore)
	used := make(map[int]struct{}, len(Lengths))
	for _, length := range Lengths {
		route, ok := closest(eligible, targets[length], used)
		if !ok {
			continue
		}
		used[route.ID] = struct{}{}
		recommendations = append(recommendations, Recommendation{
			Length: length,
			Route:  route,
			Impact: impact(route, len(completed), len(in.Routes), remainingMinutes),
		})
	}
	return recommendations
}

// closest finds the unused route nearest to target minutes. Ties go to the
// shorter route, then to the earlier one.
func closest(routes []ride.Route, target float64, used map[int]struct{}) (ride.Route, bool) {
	var best ride.Route
	bestDiff := math.Inf(1)
	found := false

	for _, r := range routes {
		if _, ok := used[r.ID]; ok {
			continue
		}
		diff := math.Abs(float64(r.EstimatedTimeMinutes) - target)
		if !found || diff < bestDiff || (diff == bestDiff && r.EstimatedTimeMinutes < best.EstimatedTimeMinutes) {
			best, bestDiff, found = r, diff, true
		}
	}
	return best, found
}

func impact(route ride.Route, completed, total int, remainingMinutes float64) Impact {
	out := Impact{
		ProjectedBadgeCompletionPercent: round1(float64(completed+1) / float64(max(total, 1)) * 100),
	}
	if remainingMinutes > 0 {
		out.ProjectedHoursBurndownPercent = round1(float64(route.EstimatedTimeMinutes) / remainingMinutes * 100)
	}
	return out
}

// round1 rounds half away from zero to one decimal.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
