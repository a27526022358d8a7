package order

import (
	"time"
)

// UrgentAfter is how long an order may stay OPEN before it is flagged as urgent.
const UrgentAfter = 15 * time.Minute

// displayIDLength is the number of trailing id characters shown on a ticket.
const displayIDLength = 4

// Order represents a kitchen order in the working set.
type Order struct {
	ID          string     `json:"id"`
	DisplayID   string     `json:"displayId"`
	Source      Source     `json:"source"`
	Status      Status     `json:"status"`
	IsDelivery  bool       `json:"isDelivery"`
	IsScheduled bool       `json:"isScheduled"`
	DisplayName string     `json:"displayName,omitempty"`
	PickupAt    *time.Time `json:"pickupAt,omitempty"`
	LineItems   []LineItem `json:"lineItems"`
	TotalMoney  int64      `json:"totalMoney"`
	Note        string     `json:"note,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// LineItem represents a single ticket line. Quantity is textual ("0.5 lb").
type LineItem struct {
	Name          string   `json:"name"`
	Quantity      string   `json:"quantity"`
	VariationName string   `json:"variationName,omitempty"`
	Modifiers     []string `json:"modifiers,omitempty"`
	TotalMoney    int64    `json:"totalMoney"`
}

// Patch is a partial order update. Nil fields are absent and keep their current value.
type Patch struct {
	ID          string
	DisplayID   *string
	Source      *Source
	Status      *Status
	IsDelivery  *bool
	IsScheduled *bool
	DisplayName *string
	PickupAt    *time.Time
	LineItems   *[]LineItem
	TotalMoney  *int64
	Note        *string
	UpdatedAt   *time.Time
}

// StatusPatch builds a patch that only changes the status.
func StatusPatch(id string, status Status) Patch {
	return Patch{ID: id, Status: &status}
}

// DeriveDisplayID returns the short ticket number for an order id.
func DeriveDisplayID(id string) string {
	r := []rune(id)
	if len(r) <= displayIDLength {
		return id
	}

	return string(r[len(r)-displayIDLength:])
}

// Clone returns a deep copy that shares no slices or pointers with o.
func (o Order) Clone() Order {
	c := o
	c.LineItems = cloneLineItems(o.LineItems)
	if o.PickupAt != nil {
		t := *o.PickupAt
		c.PickupAt = &t
	}

	return c
}

func cloneLineItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	for i, item := range items {
		out[i] = item
		if item.Modifiers != nil {
			out[i].Modifiers = append([]string(nil), item.Modifiers...)
		}
	}

	return out
}

// MergePartial returns existing with every field present in patch applied.
// A status that would move backwards is ignored while the remaining fields still merge.
// When the status changes, UpdatedAt becomes now unless the patch carries its own UpdatedAt.
func MergePartial(existing Order, patch Patch, now time.Time) Order {
	merged := existing.Clone()

	if patch.DisplayID != nil {
		merged.DisplayID = *patch.DisplayID
	}
	if patch.Source != nil {
		merged.Source = *patch.Source
	}
	if patch.IsDelivery != nil {
		merged.IsDelivery = *patch.IsDelivery
	}
	if patch.IsScheduled != nil {
		merged.IsScheduled = *patch.IsScheduled
	}
	if patch.DisplayName != nil {
		merged.DisplayName = *patch.DisplayName
	}
	if patch.PickupAt != nil {
		t := *patch.PickupAt
		merged.PickupAt = &t
	}
	if patch.LineItems != nil {
		merged.LineItems = cloneLineItems(*patch.LineItems)
	}
	if patch.TotalMoney != nil && *patch.TotalMoney >= 0 {
		merged.TotalMoney = *patch.TotalMoney
	}
	if patch.Note != nil {
		merged.Note = *patch.Note
	}

	if patch.Status != nil && CanTransition(existing.Status, *patch.Status) {
		merged.Status = *patch.Status
		merged.UpdatedAt = now
	}
	if patch.UpdatedAt != nil {
		merged.UpdatedAt = *patch.UpdatedAt
	}

	return merged
}

// IsBackward reports whether the patch carries a status the order may not move to.
func (p Patch) IsBackward(current Status) bool {
	if p.Status == nil || *p.Status == current {
		return false
	}

	return !CanTransition(current, *p.Status)
}

// IsUrgent reports whether an order has been waiting to be started for too long.
func IsUrgent(o Order, now time.Time) bool {
	return o.Status == StatusOpen && now.Sub(o.CreatedAt) >= UrgentAfter
}
