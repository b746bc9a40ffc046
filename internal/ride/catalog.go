package ride

import (
	"math"

	"github.com/ridedeck/ridedeck/internal/normalize"
)

// Duration model for route estimates.
const (
	DefaultSpeedKph     = 28.0
	MaxSpeedKph         = 45.0
	BaseSpeedKph        = 20.0
	WattsPerKph         = 20.0
	ClimbMinutesPer100m = 2.2
	MinEstimatedMinutes = 5
)

// RiderSpeedKph returns the flat-road speed assumed for a rider with the given FTP.
func RiderSpeedKph(ftpWatts float64) float64 {
	if ftpWatts <= 0 {
		return DefaultSpeedKph
	}
	return math.Min(MaxSpeedKph, BaseSpeedKph+ftpWatts/WattsPerKph)
}

// EstimateRouteMinutes estimates how long a rider needs for a route.
func EstimateRouteMinutes(distanceKm, elevationM, ftpWatts float64) int {
	var travel, climb float64
	if distanceKm != 0 {
		travel = distanceKm / RiderSpeedKph(ftpWatts) * 60
	}
	if elevationM != 0 {
		climb = elevationM / 100 * ClimbMinutesPer100m
	}
	minutes := int(math.Round(travel + climb))
	if minutes < MinEstimatedMinutes {
		return MinEstimatedMinutes
	}
	return minutes
}

// BuildCatalog normalizes raw routes into the rideable catalog. Ineligible
// routes are dropped and a repeated route id keeps its first occurrence.
// profile may be nil.
func BuildCatalog(raw []normalize.Record, profile *RiderProfile) []Route {
	ftp := profile.FTP()
	seen := make(map[int]struct{}, len(raw))
	routes := make([]Route, 0, len(raw))

	for _, rec := range raw {
		distance := rec.DistanceKm(routeDistance)
		elevation := rec.Number(routeElevation)

		route := NormalizeRoute(rec, EstimateRouteMinutes(distance, elevation, ftp))
		if !route.Eligible() {
			continue
		}
		if _, dup := seen[route.ID]; dup {
			continue
		}
		seen[route.ID] = struct{}{}
		routes = append(routes, route)
	}

	return routes
}

// MapActivitiesToBadges derives one badge per completed catalog route. The
// first activity in input order referencing a route wins. Route ids absent
// from the catalog are reported once each, in first-seen order.
func MapActivitiesToBadges(activities []Activity, routes []Route) BadgeResult {
	known := make(map[int]struct{}, len(routes))
	for _, r := range routes {
		known[r.ID] = struct{}{}
	}

	result := BadgeResult{
		Badges:        []Badge{},
		MissingRoutes: []int{},
	}
	badged := make(map[int]struct{})
	missing := make(map[int]struct{})

	for _, a := range activities {
		if a.RouteID == nil || *a.RouteID == 0 {
			continue
		}
		id := *a.RouteID

		if _, ok := known[id]; !ok {
			if _, seen := missing[id]; !seen {
				missing[id] = struct{}{}
				result.MissingRoutes = append(result.MissingRoutes, id)
			}
			continue
		}

		if _, done := badged[id]; done {
			continue
		}
		badged[id] = struct{}{}
		result.Badges = append(result.Badges, Badge{
			RouteID:     id,
			ActivityID:  a.ID,
			CompletedAt: a.StartTime,
		})
	}

	return result
}
