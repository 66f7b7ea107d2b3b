// Package webhook ingests carrier tracking events: authenticated by a shared
// credential, rate limited, deduplicated, and applied to lead lifecycles
// idempotently.
package webhook

import "time"

// ActivityStatus is the carrier's classification of a scan.
type ActivityStatus struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// CarrierEventPayload is the carrier's delivery notification body.
type CarrierEventPayload struct {
	TrackingNumber     string         `json:"trackingNumber" validate:"required,min=8,max=40"`
	ActivityStatus     ActivityStatus `json:"activityStatus"`
	LocalActivityDate  string         `json:"localActivityDate" validate:"required"`
	LocalActivityTime  string         `json:"localActivityTime"`
	ActivityLocation   string         `json:"activityLocation"`
	ActualDeliveryDate string         `json:"actualDeliveryDate,omitempty"`
}

// OccurredAt parses the carrier's local date/time pair. Carriers send either
// compact (20060102/150405) or dashed (2006-01-02/15:04:05) forms; an
// unreadable pair falls back to the receipt time so the event is never lost.
func (p CarrierEventPayload) OccurredAt(received time.Time) time.Time {
	dateLayouts := []string{"20060102", "2006-01-02"}
	timeLayouts := []string{"150405", "15:04:05"}

	for _, dl := range dateLayouts {
		d, err := time.Parse(dl, p.LocalActivityDate)
		if err != nil {
			continue
		}
		if p.LocalActivityTime == "" {
			return d
		}
		for _, tl := range timeLayouts {
			t, err := time.Parse(tl, p.LocalActivityTime)
			if err != nil {
				continue
			}
			return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
		}
		return d
	}
	return received
}

// EventCategory is the pipeline-relevant classification of a carrier scan.
type EventCategory string

const (
	CategoryDelivered EventCategory = "DELIVERED"
	CategoryException EventCategory = "EXCEPTION"
	CategoryInTransit EventCategory = "IN_TRANSIT"
)

// Categorize maps carrier activity type/code spellings onto the three
// categories the state machine cares about. Unrecognized scans are treated
// as in-transit movement.
func (a ActivityStatus) Categorize() EventCategory {
	switch a.Type {
	case "D", "DL":
		return CategoryDelivered
	case "X", "RS":
		return CategoryException
	}
	switch a.Code {
	case "D1", "OD", "FS":
		return CategoryDelivered
	case "DE", "CA", "RTS":
		return CategoryException
	}
	return CategoryInTransit
}

// ReceiptResponse is returned for every accepted delivery, including
// duplicates and events that match no lead — carriers retry non-2xx
// responses, and a redelivery storm helps nobody.
type ReceiptResponse struct {
	Status   string `json:"status"` // applied, duplicate, ignored
	LeadID   string `json:"leadId,omitempty"`
	Category string `json:"category,omitempty"`
}
