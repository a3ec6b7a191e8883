package location

import "opsdesk/internal/domain/geo"

type Kind string

const (
	KindHeadOffice Kind = "HEAD_OFFICE"
	KindFactory    Kind = "FACTORY"
	KindField      Kind = "FIELD"
	KindCustom     Kind = "CUSTOM"
)

const (
	DefaultCustomRadiusMeters = 200
	DefaultKioskRadiusMeters  = 300
)

// Site is a custom work location stored on a staff profile.
type Site struct {
	Lat          float64 `json:"lat" firestore:"lat"`
	Lng          float64 `json:"lng" firestore:"lng"`
	RadiusMeters float64 `json:"radius" firestore:"radius"`
	Name         string  `json:"name" firestore:"name"`
}

func (s *Site) valid() bool {
	return s != nil && geo.Point{Lat: s.Lat, Lng: s.Lng}.Valid()
}

func (s *Site) target(fallbackName string, defaultRadius float64) geo.Target {
	radius := s.RadiusMeters
	if radius <= 0 {
		radius = defaultRadius
	}
	name := s.Name
	if name == "" {
		name = fallbackName
	}
	return geo.Target{Name: name, Lat: s.Lat, Lng: s.Lng, AllowedRadiusMeters: radius}
}

// StaffConfig is the location part of a staff profile.
type StaffConfig struct {
	Kind                    Kind  `json:"workLocation" firestore:"workLocation"`
	Primary                 *Site `json:"customLocation,omitempty" firestore:"customLocation,omitempty"`
	Secondary               *Site `json:"customLocation2,omitempty" firestore:"customLocation2,omitempty"`
	RequireCheckoutLocation bool  `json:"requireCheckoutLocation" firestore:"requireCheckoutLocation"`
}

// Presets maps the named work locations to their configured targets.
type Presets map[Kind]geo.Target

func (p Presets) lookup(kind Kind) (geo.Target, bool) {
	target, ok := p[kind]
	return target, ok
}

func ValidKind(kind Kind) bool {
	switch kind {
	case KindHeadOffice, KindFactory, KindField, KindCustom:
		return true
	}
	return false
}
