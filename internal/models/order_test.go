package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusConfirmed, OrderStatusAccepted, true},
		{OrderStatusAccepted, OrderStatusDispatched, true},
		{OrderStatusDispatched, OrderStatusDelivered, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusDispatched, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusDispatched, false},
		{OrderStatusConfirmed, OrderStatusDelivered, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusDelivered, OrderStatusPending, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestTransitionTo_AppendsStatusLog(t *testing.T) {
	o := &Order{OrderID: "o1", Status: OrderStatusPending}

	require.NoError(t, o.TransitionTo(OrderStatusConfirmed, "vendor accepted"))
	require.NoError(t, o.TransitionTo(OrderStatusAccepted, ""))

	assert.Equal(t, OrderStatusAccepted, o.Status)
	require.Len(t, o.StatusLog, 2)
	assert.Equal(t, OrderStatusConfirmed, o.StatusLog[0].Status)
	assert.Equal(t, "vendor accepted", o.StatusLog[0].Reason)
}

func TestTransitionTo_RejectsIllegalEdge(t *testing.T) {
	o := &Order{OrderID: "o1", Status: OrderStatusPending}

	err := o.TransitionTo(OrderStatusDelivered, "")
	require.Error(t, err)
	assert.Equal(t, OrderStatusPending, o.Status, "status unchanged on rejected transition")
	assert.Empty(t, o.StatusLog)
}

func TestTransitionTo_StampsTerminalTimestamps(t *testing.T) {
	o := &Order{OrderID: "o1", Status: OrderStatusDispatched}
	require.NoError(t, o.TransitionTo(OrderStatusDelivered, "pod received"))
	require.NotNil(t, o.DeliveredAt)

	cancelled := &Order{OrderID: "o2", Status: OrderStatusPending}
	require.NoError(t, cancelled.TransitionTo(OrderStatusCancelled, "retailer request"))
	require.NotNil(t, cancelled.CancelledAt)
}
