package models

import "time"

// AlertDirection is the threshold comparison direction.
type AlertDirection string

const (
	AlertAbove AlertDirection = "above"
	AlertBelow AlertDirection = "below"
)

// AlertStatus is the alert lifecycle state.
type AlertStatus string

const (
	AlertActive    AlertStatus = "active"
	AlertTriggered AlertStatus = "triggered"
	AlertCancelled AlertStatus = "cancelled"
)

// PriceAlert is a user-defined threshold alert. It transitions to
// triggered exactly once when the condition is first satisfied, then
// requires explicit user action to reactivate.
type PriceAlert struct {
	ID          string
	UserID      string
	Key         SeriesKey
	TargetPrice float64 // quintal
	Direction   AlertDirection
	Status      AlertStatus
	CreatedAt   time.Time
	TriggeredAt *time.Time
}

// Satisfied reports whether value meets the alert condition.
func (a *PriceAlert) Satisfied(value float64) bool {
	switch a.Direction {
	case AlertAbove:
		return value >= a.TargetPrice
	case AlertBelow:
		return value <= a.TargetPrice
	default:
		return false
	}
}

// AlertEvent is the notification payload emitted on a trigger.
// Delivery is an external collaborator.
type AlertEvent struct {
	AlertID     string
	UserID      string
	Key         SeriesKey
	Direction   AlertDirection
	TargetPrice float64
	Value       float64
	At          time.Time
}
