// Package converters maps backend wire payloads to order model values and back.
package converters

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/corray333/backend-labs/kds/internal/service/models/order"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// LineItemDTO is a ticket line as the backend sends it.
type LineItemDTO struct {
	Name          string   `json:"name"                    validate:"required"`
	Quantity      string   `json:"quantity"`
	VariationName string   `json:"variationName,omitempty"`
	Modifiers     []string `json:"modifiers,omitempty"`
	TotalMoney    int64    `json:"totalMoney"              validate:"gte=0"`
}

// OrderDTO is a full order as the backend sends it. Timestamps are ISO-8601 strings
// and an absent pickup time is an empty string.
type OrderDTO struct {
	ID          string        `json:"id"          validate:"required"`
	DisplayID   string        `json:"displayId"`
	Source      string        `json:"source"`
	Status      string        `json:"status"      validate:"required"`
	IsDelivery  bool          `json:"isDelivery"`
	IsScheduled bool          `json:"isScheduled"`
	DisplayName string        `json:"displayName"`
	PickupAt    string        `json:"pickupAt"`
	LineItems   []LineItemDTO `json:"lineItems"   validate:"dive"`
	TotalMoney  int64         `json:"totalMoney"  validate:"gte=0"`
	Note        string        `json:"note,omitempty"`
	CreatedAt   string        `json:"createdAt"   validate:"required"`
	UpdatedAt   string        `json:"updatedAt"`
}

// PatchDTO is the payload of order:updated. Absent keys decode to nil.
type PatchDTO struct {
	ID          string         `json:"id"          validate:"required"`
	DisplayID   *string        `json:"displayId"`
	Source      *string        `json:"source"`
	Status      *string        `json:"status"`
	IsDelivery  *bool          `json:"isDelivery"`
	IsScheduled *bool          `json:"isScheduled"`
	DisplayName *string        `json:"displayName"`
	PickupAt    *string        `json:"pickupAt"`
	LineItems   *[]LineItemDTO `json:"lineItems"   validate:"omitempty,dive"`
	TotalMoney  *int64         `json:"totalMoney"  validate:"omitempty,gte=0"`
	Note        *string        `json:"note"`
	UpdatedAt   *string        `json:"updatedAt"`
}

// CancelDTO is the payload of order:cancelled.
type CancelDTO struct {
	ID string `json:"id" validate:"required"`
}

// JoinedDTO is the payload of joined.
type JoinedDTO struct {
	Room string `json:"room"`
}

// ActiveOrdersResponse is the body of the snapshot endpoint.
type ActiveOrdersResponse struct {
	Orders []OrderDTO `json:"orders"`
}

// StatusRequest is the body of the status mutation endpoint.
type StatusRequest struct {
	Status         string `json:"status"`
	RestaurantCode string `json:"restaurantCode"`
}

// RestaurantConfigResponse is the body of the restaurant lookup endpoint.
type RestaurantConfigResponse struct {
	Name string `json:"name"`
}

// OrderFromDTO validates a wire order and converts it to the model.
func OrderFromDTO(dto OrderDTO) (order.Order, error) {
	if err := validate.Struct(dto); err != nil {
		return order.Order{}, fmt.Errorf("invalid order payload: %w", err)
	}

	status, err := order.ParseStatus(dto.Status)
	if err != nil {
		return order.Order{}, err
	}
	createdAt, err := parseTime(dto.CreatedAt)
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to parse createdAt: %w", err)
	}
	updatedAt := createdAt
	if dto.UpdatedAt != "" {
		if updatedAt, err = parseTime(dto.UpdatedAt); err != nil {
			return order.Order{}, fmt.Errorf("failed to parse updatedAt: %w", err)
		}
	}
	pickupAt, err := parseOptionalTime(dto.PickupAt)
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to parse pickupAt: %w", err)
	}

	displayID := dto.DisplayID
	if displayID == "" {
		displayID = order.DeriveDisplayID(dto.ID)
	}

	return order.Order{
		ID:          dto.ID,
		DisplayID:   displayID,
		Source:      order.ClassifySource(dto.Source),
		Status:      status,
		IsDelivery:  dto.IsDelivery,
		IsScheduled: dto.IsScheduled,
		DisplayName: dto.DisplayName,
		PickupAt:    pickupAt,
		LineItems:   lineItemsFromDTO(dto.LineItems),
		TotalMoney:  dto.TotalMoney,
		Note:        dto.Note,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

// OrdersFromDTO converts a snapshot. Invalid entries are returned as errors so the
// caller can decide whether a partial snapshot is acceptable.
func OrdersFromDTO(dtos []OrderDTO) ([]order.Order, []error) {
	orders := make([]order.Order, 0, len(dtos))
	var errs []error
	for i, dto := range dtos {
		o, err := OrderFromDTO(dto)
		if err != nil {
			errs = append(errs, fmt.Errorf("order %d (%q): %w", i, dto.ID, err))
			continue
		}
		orders = append(orders, o)
	}

	return orders, errs
}

// OrderToDTO converts a model order to its wire form.
func OrderToDTO(o order.Order) OrderDTO {
	items := make([]LineItemDTO, len(o.LineItems))
	for i, item := range o.LineItems {
		items[i] = LineItemDTO(item)
	}
	pickupAt := ""
	if o.PickupAt != nil {
		pickupAt = o.PickupAt.UTC().Format(time.RFC3339Nano)
	}

	return OrderDTO{
		ID:          o.ID,
		DisplayID:   o.DisplayID,
		Source:      o.Source.String(),
		Status:      o.Status.String(),
		IsDelivery:  o.IsDelivery,
		IsScheduled: o.IsScheduled,
		DisplayName: o.DisplayName,
		PickupAt:    pickupAt,
		LineItems:   items,
		TotalMoney:  o.TotalMoney,
		Note:        o.Note,
		CreatedAt:   o.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   o.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// PatchFromDTO validates a partial update and converts it to a model patch.
func PatchFromDTO(dto PatchDTO) (order.Patch, error) {
	if err := validate.Struct(dto); err != nil {
		return order.Patch{}, fmt.Errorf("invalid order update payload: %w", err)
	}

	p := order.Patch{
		ID:          dto.ID,
		DisplayID:   dto.DisplayID,
		IsDelivery:  dto.IsDelivery,
		IsScheduled: dto.IsScheduled,
		DisplayName: dto.DisplayName,
		TotalMoney:  dto.TotalMoney,
		Note:        dto.Note,
	}
	if dto.Source != nil {
		source := order.ClassifySource(*dto.Source)
		p.Source = &source
	}
	if dto.Status != nil {
		status, err := order.ParseStatus(*dto.Status)
		if err != nil {
			return order.Patch{}, err
		}
		p.Status = &status
	}
	if dto.PickupAt != nil {
		pickupAt, err := parseOptionalTime(*dto.PickupAt)
		if err != nil {
			return order.Patch{}, fmt.Errorf("failed to parse pickupAt: %w", err)
		}
		// An explicit empty pickup time carries no value to merge.
		p.PickupAt = pickupAt
	}
	if dto.LineItems != nil {
		items := lineItemsFromDTO(*dto.LineItems)
		p.LineItems = &items
	}
	if dto.UpdatedAt != nil && *dto.UpdatedAt != "" {
		updatedAt, err := parseTime(*dto.UpdatedAt)
		if err != nil {
			return order.Patch{}, fmt.Errorf("failed to parse updatedAt: %w", err)
		}
		p.UpdatedAt = &updatedAt
	}

	return p, nil
}

// DecodeOrder decodes and converts an order:new payload.
func DecodeOrder(data []byte) (order.Order, error) {
	var dto OrderDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return order.Order{}, fmt.Errorf("failed to decode order: %w", err)
	}

	return OrderFromDTO(dto)
}

// DecodePatch decodes and converts an order:updated payload.
func DecodePatch(data []byte) (order.Patch, error) {
	var dto PatchDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return order.Patch{}, fmt.Errorf("failed to decode order update: %w", err)
	}

	return PatchFromDTO(dto)
}

// DecodeCancel decodes an order:cancelled payload and returns the order id.
func DecodeCancel(data []byte) (string, error) {
	var dto CancelDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return "", fmt.Errorf("failed to decode order cancel: %w", err)
	}
	if err := validate.Struct(dto); err != nil {
		return "", fmt.Errorf("invalid order cancel payload: %w", err)
	}

	return dto.ID, nil
}

func lineItemsFromDTO(dtos []LineItemDTO) []order.LineItem {
	items := make([]order.LineItem, len(dtos))
	for i, dto := range dtos {
		items[i] = order.LineItem(dto)
		if dto.Modifiers != nil {
			items[i].Modifiers = append([]string(nil), dto.Modifiers...)
		}
	}

	return items
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}

	return t.UTC(), nil
}

func parseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseTime(s)
	if err != nil {
		return nil, err
	}

	return &t, nil
}
