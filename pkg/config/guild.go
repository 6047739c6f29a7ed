package config

import "time"

// Guild holds per guild overrides, nil fields fall back to the environment.
type Guild struct {
	VerificationMode    *VerificationMode `db:"verification_mode"`
	VerificationTimeout *int32            `db:"verification_timeout"`
}

func (g Guild) Mode(fallback VerificationMode) VerificationMode {
	if g.VerificationMode == nil {
		return fallback
	}
	return *g.VerificationMode
}

// Timeout returns the per guild verification timeout or fallback when none is stored.
func (g Guild) Timeout(fallback time.Duration) time.Duration {
	if g.VerificationTimeout == nil || *g.VerificationTimeout <= 0 {
		return fallback
	}
	return time.Duration(*g.VerificationTimeout) * time.Second
}

type VerificationMode int

const (
	VerificationModeOverlay VerificationMode = iota
	VerificationModeRole
)

func (m VerificationMode) String() string {
	switch m {
	case VerificationModeOverlay:
		return "Mute newcomers in every channel"
	case VerificationModeRole:
		return "Give newcomers a temporary role"
	}
	return "Unknown"
}

func ParseVerificationMode(s string) (VerificationMode, bool) {
	switch s {
	case "overlay", "":
		return VerificationModeOverlay, true
	case "role":
		return VerificationModeRole, true
	}
	return VerificationModeOverlay, false
}
