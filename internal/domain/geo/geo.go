package geo

import (
	"math"
	"time"
)

const (
	EarthRadiusMeters = 6371000

	// Targets with a radius above this are unrestricted (e.g. field staff).
	UnrestrictedRadiusMeters = 5000000
)

type Point struct {
	Lat float64 `json:"lat" firestore:"lat"`
	Lng float64 `json:"lng" firestore:"lng"`
}

// Valid reports whether both coordinates are non-zero. A zero on either axis
// is how an unset location is stored.
func (p Point) Valid() bool {
	return p.Lat != 0 && p.Lng != 0
}

type Sample struct {
	Point
	AccuracyMeters float64   `json:"accuracy"`
	Timestamp      time.Time `json:"timestamp"`
}

type Target struct {
	Name                string  `json:"name"`
	Lat                 float64 `json:"lat"`
	Lng                 float64 `json:"lng"`
	AllowedRadiusMeters float64 `json:"allowedRadius"`
}

func (t Target) Point() Point {
	return Point{Lat: t.Lat, Lng: t.Lng}
}

func (t Target) Unrestricted() bool {
	return t.AllowedRadiusMeters > UnrestrictedRadiusMeters
}

type Verdict struct {
	DistanceMeters float64 `json:"distance"`
	TargetName     string  `json:"targetName"`
	IsAllowed      bool    `json:"isAllowed"`
	AllowedRadius  float64 `json:"allowedRadius"`
}

// Distance returns the haversine great-circle distance in meters.
func Distance(a, b Point) float64 {
	latRad1 := a.Lat * math.Pi / 180
	latRad2 := b.Lat * math.Pi / 180
	diffLat := (b.Lat - a.Lat) * math.Pi / 180
	diffLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(diffLat/2)*math.Sin(diffLat/2) +
		math.Cos(latRad1)*math.Cos(latRad2)*
			math.Sin(diffLng/2)*math.Sin(diffLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// Allowed reports whether a position at distance meters from t may act.
// The radius boundary is inclusive.
func Allowed(t Target, distance float64) bool {
	return distance <= t.AllowedRadiusMeters || t.Unrestricted()
}

// Evaluate scans targets in order and returns the first allowed one. When none
// is allowed it returns the nearest target with IsAllowed=false. ok is false
// only when targets is empty.
func Evaluate(p Point, targets []Target) (Verdict, bool) {
	if len(targets) == 0 {
		return Verdict{}, false
	}

	nearest := Verdict{DistanceMeters: math.MaxFloat64}
	for _, target := range targets {
		distance := Distance(p, target.Point())
		if Allowed(target, distance) {
			return Verdict{
				DistanceMeters: distance,
				TargetName:     target.Name,
				IsAllowed:      true,
				AllowedRadius:  target.AllowedRadiusMeters,
			}, true
		}
		if distance < nearest.DistanceMeters {
			nearest = Verdict{
				DistanceMeters: distance,
				TargetName:     target.Name,
				AllowedRadius:  target.AllowedRadiusMeters,
			}
		}
	}
	return nearest, true
}
