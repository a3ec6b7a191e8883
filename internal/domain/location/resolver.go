package location

import (
	"opsdesk/internal/domain/auth"
	"opsdesk/internal/domain/geo"
)

// Fallback names why a resolution ended on a default preset instead of the
// staff member's own configuration.
type Fallback string

const (
	FallbackNone              Fallback = ""
	FallbackNoProfile         Fallback = "no_profile"
	FallbackInvalidCustom     Fallback = "invalid_custom"
	FallbackUnknownPreset     Fallback = "unknown_preset"
	FallbackKioskNoCustom     Fallback = "kiosk_default"
	FallbackMissingHeadOffice Fallback = "missing_head_office"
)

type Resolution struct {
	Targets  []geo.Target
	Fallback Fallback
}

// Explain returns the ordered candidate targets for a staff member and the
// reason a default preset was used, if any. Targets is never empty.
func Explain(cfg *StaffConfig, role string, presets Presets) Resolution {
	if role == auth.RoleKiosk {
		if cfg != nil && cfg.Kind == KindCustom && cfg.Primary.valid() {
			return Resolution{Targets: []geo.Target{cfg.Primary.target("Custom Location", DefaultKioskRadiusMeters)}}
		}
		return preset(presets, KindFactory, FallbackKioskNoCustom)
	}

	if cfg == nil {
		return headOffice(presets, FallbackNoProfile)
	}

	if cfg.Kind == KindCustom {
		var targets []geo.Target
		if cfg.Primary.valid() {
			targets = append(targets, cfg.Primary.target("Custom Location", DefaultCustomRadiusMeters))
		}
		if cfg.Secondary.valid() {
			targets = append(targets, cfg.Secondary.target("Custom Location 2", DefaultCustomRadiusMeters))
		}
		if len(targets) == 0 {
			return headOffice(presets, FallbackInvalidCustom)
		}
		return Resolution{Targets: targets}
	}

	if target, ok := presets.lookup(cfg.Kind); ok {
		return Resolution{Targets: []geo.Target{target}}
	}
	return headOffice(presets, FallbackUnknownPreset)
}

func preset(presets Presets, kind Kind, reason Fallback) Resolution {
	if target, ok := presets.lookup(kind); ok {
		return Resolution{Targets: []geo.Target{target}, Fallback: reason}
	}
	return headOffice(presets, reason)
}

func headOffice(presets Presets, reason Fallback) Resolution {
	if target, ok := presets.lookup(KindHeadOffice); ok {
		return Resolution{Targets: []geo.Target{target}, Fallback: reason}
	}
	// Presets without a head office are a config error; an unrestricted
	// target keeps staff from being locked out.
	return Resolution{
		Targets:  []geo.Target{{Name: "Head Office", AllowedRadiusMeters: geo.UnrestrictedRadiusMeters * 2}},
		Fallback: FallbackMissingHeadOffice,
	}
}
