package converters

import (
	"testing"
	"time"

	"github.com/corray333/backend-labs/kds/internal/service/models/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const newOrderPayload = `{
	"id": "sq_order_7f3a",
	"source": "DoorDash - Online",
	"status": "OPEN",
	"isDelivery": true,
	"isScheduled": false,
	"displayName": "Dana",
	"pickupAt": "",
	"lineItems": [
		{"name": "Carnitas Taco", "quantity": "2", "modifiers": ["no onion", "extra salsa"], "totalMoney": 900},
		{"name": "Horchata", "quantity": "1", "variationName": "Large", "totalMoney": 450}
	],
	"totalMoney": 1350,
	"note": "ring the bell",
	"createdAt": "2026-03-14T18:00:00.000Z",
	"updatedAt": "2026-03-14T18:00:00.000Z"
}`

func TestDecodeOrder(t *testing.T) {
	o, err := DecodeOrder([]byte(newOrderPayload))
	require.NoError(t, err)

	assert.Equal(t, "sq_order_7f3a", o.ID)
	assert.Equal(t, "7f3a", o.DisplayID, "derived when absent")
	assert.Equal(t, order.SourceDoorDash, o.Source)
	assert.Equal(t, order.StatusOpen, o.Status)
	assert.Nil(t, o.PickupAt)
	require.Len(t, o.LineItems, 2)
	assert.Equal(t, "Carnitas Taco", o.LineItems[0].Name)
	assert.Equal(t, []string{"no onion", "extra salsa"}, o.LineItems[0].Modifiers)
	assert.Equal(t, "Large", o.LineItems[1].VariationName)
	assert.Equal(t, int64(1350), o.TotalMoney)
	assert.Equal(t, time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC), o.CreatedAt)
}

func TestDecodeOrder_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing id":       `{"status": "OPEN", "createdAt": "2026-03-14T18:00:00Z"}`,
		"negative money":   `{"id": "o1", "status": "OPEN", "totalMoney": -5, "createdAt": "2026-03-14T18:00:00Z"}`,
		"unknown status":   `{"id": "o1", "status": "REFUNDED", "createdAt": "2026-03-14T18:00:00Z"}`,
		"bad timestamp":    `{"id": "o1", "status": "OPEN", "createdAt": "yesterday"}`,
		"nameless item":    `{"id": "o1", "status": "OPEN", "createdAt": "2026-03-14T18:00:00Z", "lineItems": [{"quantity": "1"}]}`,
		"malformed json":   `{"id": `,
		"missing creation": `{"id": "o1", "status": "OPEN"}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeOrder([]byte(payload))
			assert.Error(t, err)
		})
	}
}

func TestDecodePatch_OnlyPresentFields(t *testing.T) {
	p, err := DecodePatch([]byte(`{"id": "o1", "status": "IN_PROGRESS"}`))
	require.NoError(t, err)

	assert.Equal(t, "o1", p.ID)
	require.NotNil(t, p.Status)
	assert.Equal(t, order.StatusInProgress, *p.Status)
	assert.Nil(t, p.LineItems)
	assert.Nil(t, p.Note)
	assert.Nil(t, p.TotalMoney)
	assert.Nil(t, p.UpdatedAt)
}

func TestDecodePatch_Fields(t *testing.T) {
	p, err := DecodePatch([]byte(`{
		"id": "o1",
		"note": "",
		"totalMoney": 0,
		"lineItems": [],
		"pickupAt": "2026-03-14T18:30:00Z",
		"updatedAt": "2026-03-14T18:05:00Z"
	}`))
	require.NoError(t, err)

	require.NotNil(t, p.Note)
	assert.Equal(t, "", *p.Note, "explicit empty note clears it")
	require.NotNil(t, p.TotalMoney)
	assert.Equal(t, int64(0), *p.TotalMoney)
	require.NotNil(t, p.LineItems)
	assert.Empty(t, *p.LineItems)
	require.NotNil(t, p.PickupAt)
	assert.Equal(t, time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC), *p.PickupAt)
	require.NotNil(t, p.UpdatedAt)
}

func TestDecodePatch_Invalid(t *testing.T) {
	_, err := DecodePatch([]byte(`{"status": "OPEN"}`))
	assert.Error(t, err)

	_, err = DecodePatch([]byte(`{"id": "o1", "totalMoney": -1}`))
	assert.Error(t, err)

	_, err = DecodePatch([]byte(`{"id": "o1", "status": "SOMETHING"}`))
	assert.ErrorIs(t, err, order.ErrInvalidStatus)
}

func TestDecodeCancel(t *testing.T) {
	id, err := DecodeCancel([]byte(`{"id": "o1"}`))
	require.NoError(t, err)
	assert.Equal(t, "o1", id)

	_, err = DecodeCancel([]byte(`{}`))
	assert.Error(t, err)
}

func TestOrdersFromDTO_SkipsInvalid(t *testing.T) {
	dtos := []OrderDTO{
		{ID: "o1", Status: "OPEN", CreatedAt: "2026-03-14T18:00:00Z"},
		{ID: "", Status: "OPEN", CreatedAt: "2026-03-14T18:00:00Z"},
		{ID: "o3", Status: "COMPLETED", CreatedAt: "2026-03-14T18:00:00Z"},
	}

	orders, errs := OrdersFromDTO(dtos)

	require.Len(t, orders, 2)
	assert.Equal(t, "o1", orders[0].ID)
	assert.Equal(t, "o3", orders[1].ID)
	assert.Len(t, errs, 1)
}

func TestOrderToDTO_RoundTrip(t *testing.T) {
	o, err := DecodeOrder([]byte(newOrderPayload))
	require.NoError(t, err)

	back, err := OrderFromDTO(OrderToDTO(o))
	require.NoError(t, err)

	assert.Equal(t, o, back)
}
