package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session is the durable record of one participant's outstanding zone visit.
// It exists exactly as long as the participant owes a return trip. Deadlines
// are absolute epoch-millisecond timestamps; they are recomputed from the
// wall clock at admission and at reconnect, never decremented tick by tick.
type Session struct {
	ParticipantID    uuid.UUID `json:"participant_id"`
	OriginalPosition Point3    `json:"original_position"`
	OriginRegionID   string    `json:"origin_region_id"`
	ZoneID           int       `json:"zone_id"`
	ExpiresAtMillis  int64     `json:"expires_at_millis"`
	// LogoutAtMillis is set while the participant is disconnected and zero
	// while connected.
	LogoutAtMillis int64 `json:"logout_at_millis,omitempty"`
}

// Expired reports whether the session's deadline has passed at now.
func (s Session) Expired(now time.Time) bool {
	return now.UnixMilli() >= s.ExpiresAtMillis
}

// Remaining returns the time left on the session at now. Negative once expired.
func (s Session) Remaining(now time.Time) time.Duration {
	return time.Duration(s.ExpiresAtMillis-now.UnixMilli()) * time.Millisecond
}

// RemainingAtLogout returns the time that was left when the participant
// disconnected, or zero if no disconnect is recorded.
func (s Session) RemainingAtLogout() time.Duration {
	if s.LogoutAtMillis == 0 {
		return 0
	}
	return time.Duration(s.ExpiresAtMillis-s.LogoutAtMillis) * time.Millisecond
}
