package types

import "encoding/json"

// BlockThreshold is the offense count at which a user may no longer submit
// or update reviews.
const BlockThreshold = 3

// Standing is the moderation band derived from a user's offense count.
type Standing int

const (
	// StandingClean means no offenses have been recorded.
	StandingClean Standing = iota

	// StandingWarned means one or two offenses; reviews are still allowed.
	StandingWarned

	// StandingBlocked means the user reached BlockThreshold.
	StandingBlocked
)

// StandingFor maps an offense count to its band. Counts above the
// threshold stay blocked; the cap is a display concern only.
func StandingFor(offenseCount int) Standing {
	switch {
	case offenseCount >= BlockThreshold:
		return StandingBlocked
	case offenseCount >= 1:
		return StandingWarned
	default:
		return StandingClean
	}
}

// CanSubmit reports whether a user in this band may post reviews.
func (s Standing) CanSubmit() bool {
	return s != StandingBlocked
}

func (s Standing) String() string {
	switch s {
	case StandingClean:
		return "CLEAN"
	case StandingWarned:
		return "WARNING"
	case StandingBlocked:
		return "BLOCKED"
	default:
		return "UNKNOWN"
	}
}

func (s Standing) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
