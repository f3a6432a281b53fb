package constants

import "strings"

// SessionType classifies a scheduled course session.
type SessionType string

const (
	SessionTheory   SessionType = "teoria"
	SessionPractice SessionType = "practica"
	SessionTutorial SessionType = "tutoria"
)

var allSessionTypes = []SessionType{SessionTheory, SessionPractice, SessionTutorial}

// CanonicalSessionType maps a free-form label onto a known session type.
// Unknown or empty labels fall back to teoria.
func CanonicalSessionType(label string) SessionType {
	s := strings.ToLower(strings.TrimSpace(label))
	s = strings.NewReplacer("í", "i", "á", "a").Replace(s)
	for _, t := range allSessionTypes {
		if s == string(t) {
			return t
		}
	}
	return SessionTheory
}

// ModelMode selects the generation path used for an extraction attempt.
type ModelMode string

const (
	ModeLocal ModelMode = "local"
	ModeAPI   ModelMode = "api"
)

// ParseModelMode returns the mode for s, defaulting to local when s is empty.
func ParseModelMode(s string) (ModelMode, bool) {
	switch ModelMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeLocal:
		return ModeLocal, true
	case ModeAPI:
		return ModeAPI, true
	}
	return "", false
}
