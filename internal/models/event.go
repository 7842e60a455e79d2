package models

import "time"

// Origin identifies where a notification event came from.
type Origin string

const (
	OriginNatural  Origin = "natural"
	OriginQuickWin Origin = "quickWin"
	OriginDemo     Origin = "demo"
	OriginManual   Origin = "manual"
)

// EventStatus is the moderation lifecycle state assigned upstream.
type EventStatus string

const (
	EventStatusPending  EventStatus = "pending"
	EventStatusApproved EventStatus = "approved"
	EventStatusRejected EventStatus = "rejected"
	EventStatusFlagged  EventStatus = "flagged"
)

// NotificationEvent is a single renderable social-proof item.
type NotificationEvent struct {
	ID           string       `json:"id"`
	WidgetID     string       `json:"widgetId"`
	CampaignID   *string      `json:"campaignId,omitempty"`
	Origin       Origin       `json:"origin"`
	Status       EventStatus  `json:"status"`
	QualityScore int          `json:"qualityScore"`
	ViewCount    int64        `json:"viewCount"`
	ClickCount   int64        `json:"clickCount"`
	CreatedAt    time.Time    `json:"createdAt"`
	ExpiresAt    *time.Time   `json:"expiresAt,omitempty"`
	Payload      EventPayload `json:"payload"`
}

type EventPayload struct {
	Message  string                 `json:"message"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// IsEligible reports whether the event may be selected at now.
// Only approved events that have not expired qualify.
func (e *NotificationEvent) IsEligible(now time.Time) bool {
	if e.Status != EventStatusApproved {
		return false
	}
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}

// IsNatural reports whether the event is organically sourced.
func (e *NotificationEvent) IsNatural() bool {
	return e.Origin == OriginNatural
}

func ValidOrigin(o Origin) bool {
	switch o {
	case OriginNatural, OriginQuickWin, OriginDemo, OriginManual:
		return true
	}
	return false
}
