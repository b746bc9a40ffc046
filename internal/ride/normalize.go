package ride

import (
	"strings"

	"github.com/ridedeck/ridedeck/internal/normalize"
)

// Profile fields.
var (
	profileID          = normalize.Field{Aliases: []string{"id", "playerId", "riderId", "profileId"}}
	profileFirstName   = normalize.Field{Aliases: []string{"firstName", "firstname", "givenName"}}
	profileLastName    = normalize.Field{Aliases: []string{"lastName", "lastname", "surname"}}
	profileDisplayName = normalize.Field{Aliases: []string{"displayName", "name", "fullName"}}
	profileCountry     = normalize.Field{Aliases: []string{"country", "countryCode"}}
	profileLevel       = normalize.Field{Aliases: []string{"level", "currentLevel"}}
	profileFTP         = normalize.Field{Aliases: []string{"ftp", "ftpWatts"}}
	profileWeight      = normalize.Field{Aliases: []string{"weightKg", "weight"}}
	profileHeight      = normalize.Field{Aliases: []string{"heightCm", "height"}}
	profileAvatar      = normalize.Field{Aliases: []string{"avatar", "avatarUrl", "profileImage"}}
)

// Activity fields.
var (
	activityID       = normalize.Field{Aliases: []string{"id", "activityId", "rideId"}}
	activityName     = normalize.Field{Aliases: []string{"name", "activityName"}}
	activityDistance = normalize.Field{
		Aliases: []string{"distanceKm", "distance", "distanceInMeters", "totalDistance", "distanceMeters"},
		KmKey:   "distanceKm",
	}
	activityDuration  = normalize.Field{Aliases: []string{"durationSec", "duration", "movingTime", "elapsedTime"}}
	activityElevation = normalize.Field{Aliases: []string{"elevationM", "elevationGain", "totalElevation"}}
	activityStart     = normalize.Field{Aliases: []string{"startTime", "startDate", "startedAt"}}
	activityWorld     = normalize.Field{Aliases: []string{"worldId", "mapId"}}
	activityRoute     = normalize.Field{Aliases: []string{"routeId", "route", "mapRouteId"}}
	activitySport     = normalize.Field{Aliases: []string{"sport", "activityType"}}
	activityIsEvent   = normalize.Field{Aliases: []string{"isEvent", "event", "eventRide"}}
	activitySpeed     = normalize.Field{Aliases: []string{"averageSpeedKph", "avgSpeed", "averageSpeed"}}
)

// Route fields.
var (
	routeID       = normalize.Field{Aliases: []string{"id", "routeId", "route_id"}}
	routeWorld    = normalize.Field{Aliases: []string{"worldId", "mapId"}}
	routeName     = normalize.Field{Aliases: []string{"name", "routeName"}}
	routeDistance = normalize.Field{
		Aliases: []string{"distanceKm", "distance", "distanceInMeters", "distanceMeters", "routeDistance"},
		KmKey:   "distanceKm",
	}
	routeElevation      = normalize.Field{Aliases: []string{"elevationM", "elevationGain", "climb", "totalElevation"}}
	routeLeadInDistance = normalize.Field{
		Aliases: []string{"leadInDistanceKm", "leadInDistance", "leadInDistanceMeters"},
		Kind:    normalize.KindDistance,
		KmKey:   "leadInDistanceKm",
	}
	routeLeadInElevation = normalize.Field{Aliases: []string{"leadInElevationM", "leadInElevation", "leadInElevationGain"}}
	routeImage           = normalize.Field{Aliases: []string{"imageUrl", "image", "mapImage"}}
	routeSignature       = normalize.Field{Aliases: []string{"signature", "routeSignature"}}
	routeEventOnly       = normalize.Field{Aliases: []string{"isEventOnly", "eventOnly", "onlyEvent"}}
	routePublic          = normalize.Field{Aliases: []string{"isPublic", "public", "visible"}, DefaultBool: true}
)

// NormalizeProfile converts a raw profile payload into a RiderProfile.
func NormalizeProfile(rec normalize.Record) RiderProfile {
	first := rec.Text(profileFirstName)
	last := rec.Text(profileLastName)

	display := rec.Text(profileDisplayName)
	if display == "" {
		display = strings.TrimSpace(first + " " + last)
	}
	if display == "" {
		display = DefaultDisplayName
	}

	return RiderProfile{
		ID:          rec.Text(profileID),
		DisplayName: display,
		FirstName:   first,
		LastName:    last,
		Country:     rec.Text(profileCountry),
		Level:       optional(rec, profileLevel),
		FTPWatts:    optional(rec, profileFTP),
		WeightKg:    optional(rec, profileWeight),
		HeightCm:    optional(rec, profileHeight),
		AvatarURL:   rec.Text(profileAvatar),
	}
}

// NormalizeActivity converts a raw activity payload into an Activity.
func NormalizeActivity(rec normalize.Record) Activity {
	name := rec.Text(activityName)
	if name == "" {
		name = "Zwift Activity"
	}

	return Activity{
		ID:              rec.Text(activityID),
		Name:            name,
		RouteID:         optionalInt(rec, activityRoute),
		WorldID:         optionalInt(rec, activityWorld),
		StartTime:       rec.Time(activityStart),
		DistanceKm:      rec.DistanceKm(activityDistance),
		ElevationM:      rec.Number(activityElevation),
		DurationSec:     rec.Number(activityDuration),
		Sport:           rec.Text(activitySport),
		IsEvent:         rec.Bool(activityIsEvent),
		AverageSpeedKph: optional(rec, activitySpeed),
	}
}

// NormalizeActivities normalizes every activity record in order.
func NormalizeActivities(recs []normalize.Record) []Activity {
	activities := make([]Activity, 0, len(recs))
	for _, rec := range recs {
		activities = append(activities, NormalizeActivity(rec))
	}
	return activities
}

// NormalizeRoute converts a raw route payload into a Route with the given estimate.
func NormalizeRoute(rec normalize.Record, estimatedMinutes int) Route {
	route := Route{
		ID:                   int(rec.Number(routeID)),
		WorldID:              int(rec.Number(routeWorld)),
		Name:                 rec.Text(routeName),
		DistanceKm:           rec.DistanceKm(routeDistance),
		ElevationM:           rec.Number(routeElevation),
		ImageURL:             rec.Text(routeImage),
		Signature:            rec.Text(routeSignature),
		EstimatedTimeMinutes: estimatedMinutes,
		IsEventOnly:          rec.Bool(routeEventOnly),
		IsPublic:             rec.Bool(routePublic),
	}

	if leadIn := rec.Canonical(routeLeadInDistance); leadIn.Present {
		route.LeadInDistanceKm = &leadIn.Number
	}
	if leadIn := rec.Canonical(routeLeadInElevation); leadIn.Present {
		route.LeadInElevationM = &leadIn.Number
	}

	return route
}

func optional(rec normalize.Record, f normalize.Field) *float64 {
	n, ok := rec.OptionalNumber(f)
	if !ok {
		return nil
	}
	return &n
}

func optionalInt(rec normalize.Record, f normalize.Field) *int {
	n, ok := rec.OptionalNumber(f)
	if !ok {
		return nil
	}
	i := int(n)
	return &i
}
