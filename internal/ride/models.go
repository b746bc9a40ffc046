package ride

import "errors"

// Ride errors.
var (
	ErrMissingCredentials  = errors.New("username and password are required")
	ErrProviderUnavailable = errors.New("ride provider unavailable")
)

// DefaultDisplayName is used when a profile carries no usable name.
const DefaultDisplayName = "Zwift Rider"

// Credentials authenticate a rider against the cycling platform.
type Credentials struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Validate checks that the identifiers required to log in are present.
func (c Credentials) Validate() error {
	if c.Username == "" || c.Password == "" {
		return ErrMissingCredentials
	}
	return nil
}

// RiderProfile is the normalized rider account.
type RiderProfile struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	FirstName   string   `json:"firstName,omitempty"`
	LastName    string   `json:"lastName,omitempty"`
	Country     string   `json:"country,omitempty"`
	Level       *float64 `json:"level,omitempty"`
	FTPWatts    *float64 `json:"ftpWatts,omitempty"`
	WeightKg    *float64 `json:"weightKg,omitempty"`
	HeightCm    *float64 `json:"heightCm,omitempty"`
	AvatarURL   string   `json:"avatarUrl,omitempty"`
}

// FTP returns the rider's functional threshold power, or 0 when unknown.
func (p *RiderProfile) FTP() float64 {
	if p == nil || p.FTPWatts == nil {
		return 0
	}
	return *p.FTPWatts
}

// Activity is one completed ride or run.
type Activity struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	RouteID         *int     `json:"routeId,omitempty"`
	WorldID         *int     `json:"worldId,omitempty"`
	StartTime       string   `json:"startTime"`
	DistanceKm      float64  `json:"distanceKm"`
	ElevationM      float64  `json:"elevationM"`
	DurationSec     float64  `json:"durationSec"`
	Sport           string   `json:"sport,omitempty"`
	IsEvent         bool     `json:"isEvent"`
	AverageSpeedKph *float64 `json:"averageSpeedKph,omitempty"`
}

// Route is a rideable route from the platform catalog.
type Route struct {
	ID                   int      `json:"id"`
	WorldID              int      `json:"worldId"`
	Name                 string   `json:"name"`
	DistanceKm           float64  `json:"distanceKm"`
	ElevationM           float64  `json:"elevationM"`
	LeadInDistanceKm     *float64 `json:"leadInDistanceKm,omitempty"`
	LeadInElevationM     *float64 `json:"leadInElevationM,omitempty"`
	ImageURL             string   `json:"imageUrl,omitempty"`
	Signature            string   `json:"signature,omitempty"`
	EstimatedTimeMinutes int      `json:"estimatedTimeMinutes"`
	IsEventOnly          bool     `json:"isEventOnly"`
	IsPublic             bool     `json:"isPublic"`
}

// Eligible reports whether the route may appear in a catalog.
func (r Route) Eligible() bool {
	return r.ID > 0 && r.Name != "" && r.IsPublic && !r.IsEventOnly
}

// Badge records that a route has been completed at least once.
type Badge struct {
	RouteID     int    `json:"routeId"`
	ActivityID  string `json:"activityId"`
	CompletedAt string `json:"completedAt"`
}

// BadgeResult is the outcome of mapping activities onto a catalog.
type BadgeResult struct {
	Badges        []Badge `json:"badges"`
	MissingRoutes []int   `json:"missingRoutes"`
}

// SyncResult is everything pulled from the platform for one rider.
type SyncResult struct {
	Profile       RiderProfile `json:"profile"`
	Activities    []Activity   `json:"activities"`
	Routes        []Route      `json:"routes"`
	Badges        []Badge      `json:"badges"`
	MissingRoutes []int        `json:"missingRoutes"`
}
