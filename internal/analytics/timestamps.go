package analytics

import "time"

// FactTimestamp picks the business timestamp carried in the payload (paid_at,
// cancelled_at) and falls back to the envelope's occurred_at.
func FactTimestamp(eventAt time.Time, occurredAt time.Time) time.Time {
	if !eventAt.IsZero() {
		return eventAt.UTC()
	}
	return occurredAt.UTC()
}
