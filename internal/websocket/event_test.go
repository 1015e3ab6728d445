package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	payload := map[string]interface{}{
		"runId":  "a2a9f7e0-0000-0000-0000-000000000000",
		"dryRun": true,
	}

	before := time.Now()
	evt := NewEvent(EventTypeStarted, EntityTypeReconciliation, payload)
	after := time.Now()

	assert.Equal(t, "reconciliation.started", evt.Type)
	assert.Equal(t, EntityTypeReconciliation, evt.Entity)
	assert.Equal(t, payload, evt.Payload)
	assert.True(t, !evt.Timestamp.Before(before.UTC()) && !evt.Timestamp.After(after.UTC()))
}

func TestReconciliationEvent_Helpers(t *testing.T) {
	payload := map[string]interface{}{
		"runId":     "a2a9f7e0-0000-0000-0000-000000000000",
		"matched":   float64(12),
		"matchRate": "85.7%",
	}

	t.Run("ReconciliationStarted", func(t *testing.T) {
		evt := ReconciliationStarted(payload)
		assert.Equal(t, "reconciliation.started", evt.Type)
		assert.Equal(t, EntityTypeReconciliation, evt.Entity)
		assert.Equal(t, payload, evt.Payload)
	})

	t.Run("ReconciliationCompleted", func(t *testing.T) {
		evt := ReconciliationCompleted(payload)
		assert.Equal(t, "reconciliation.completed", evt.Type)
		assert.Equal(t, EntityTypeReconciliation, evt.Entity)
		assert.Equal(t, payload, evt.Payload)
	})
}

func TestEvent_ToJSON(t *testing.T) {
	evt := ReconciliationCompleted(map[string]interface{}{"matched": float64(3)})

	data, err := evt.ToJSON()
	require.NoError(t, err)

	var decoded map[string]interface{}
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)

	assert.Equal(t, "reconciliation.completed", decoded["type"])
	assert.Equal(t, "reconciliation", decoded["entity"])
	assert.NotNil(t, decoded["payload"])
	assert.NotNil(t, decoded["timestamp"])
}
