package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatLine(t *testing.T) {
	total, fee := 120.0, 90.0
	line := formatLine(LifecycleEvent{
		Type:          EventConfirmed,
		ReservationID: 7,
		DinerID:       3,
		Status:        "confirmed",
		Tables:        []uint64{1, 4},
		TotalAmount:   &total,
		DepositFee:    &fee,
		OccurredAt:    "2024-05-01T18:00:00Z",
	})
	assert.Equal(t, "[2024-05-01T18:00:00Z] reservation.confirmed | reservation_id=7 | diner_id=3 | status=confirmed | tables=[1,4] | total=120.00 | deposit_fee=90.00\n", line)
}

func TestFormatLineMinimal(t *testing.T) {
	line := formatLine(LifecycleEvent{Type: EventRemoved, ReservationID: 9, OccurredAt: "t"})
	assert.Equal(t, "[t] reservation.removed | reservation_id=9 | diner_id=0\n", line)
}

func TestHandleMessageAppends(t *testing.T) {
	dir := t.TempDir()
	c := Consumer{Dir: dir}
	for _, id := range []uint64{1, 2} {
		body, err := json.Marshal(LifecycleEvent{Type: EventCreated, ReservationID: id, DinerID: 5, OccurredAt: "t"})
		require.NoError(t, err)
		require.NoError(t, c.handleMessage(body))
	}
	data, err := os.ReadFile(filepath.Join(dir, "reservation.log"))
	require.NoError(t, err)
	assert.Equal(t,
		"[t] reservation.created | reservation_id=1 | diner_id=5\n[t] reservation.created | reservation_id=2 | diner_id=5\n",
		string(data))
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	c := Consumer{Dir: t.TempDir()}
	assert.Error(t, c.handleMessage([]byte("not json")))
	assert.Error(t, c.handleMessage([]byte(`{"type":""}`)))
}
