package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsync/shelfsync/pkg/logging"
)

func TestMatchTopic(t *testing.T) {
	tests := []struct {
		pattern string
		topic   Topic
		want    bool
	}{
		{"*", ConflictResolved, true},
		{"conflict.resolved", ConflictResolved, true},
		{"conflict.batch.*", BatchProgress, true},
		{"conflict.batch.*", BatchCancelled, true},
		{"conflict.batch.*", ConflictResolved, false},
		{"conflict.batch", BatchProgress, false},
		{"sync.*", InboundConflictDetected, true},
		{"sync.*", ConflictDetected, false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+string(tt.topic), func(t *testing.T) {
			assert.Equal(t, tt.want, MatchTopic(tt.pattern, tt.topic))
		})
	}
}

func TestBrokerPublishFanOut(t *testing.T) {
	tl := logging.NewTestLogger(t)
	broker := NewBroker(tl.Logger)

	all := NewCollector()
	batchOnly := NewCollector()
	broker.Subscribe("*", all)
	broker.Subscribe("conflict.batch.*", batchOnly)

	broker.Publish(ConflictResolved, ResolvedPayload{ResolutionID: "res-1", BookID: "bk-1"})
	broker.Publish(BatchProgress, ProgressPayload{BatchID: "b-1", Completed: 1, Total: 10})

	require.Len(t, all.Events(), 2)
	require.Len(t, batchOnly.Events(), 1)
	assert.Equal(t, BatchProgress, batchOnly.Events()[0].Topic)
}

func TestBrokerUnsubscribe(t *testing.T) {
	tl := logging.NewTestLogger(t)
	broker := NewBroker(tl.Logger)

	col := NewCollector()
	broker.Subscribe("*", col)
	require.Equal(t, 1, broker.SubscriberCount())

	broker.Unsubscribe(col)
	assert.Equal(t, 0, broker.SubscriberCount())

	broker.Publish(ConflictDetected, nil)
	assert.Empty(t, col.Events())
}

func TestBrokerSubscribeFunc(t *testing.T) {
	tl := logging.NewTestLogger(t)
	broker := NewBroker(tl.Logger)

	var got []Topic
	broker.SubscribeFunc("conflict.*", func(e Event) {
		got = append(got, e.Topic)
	})

	broker.Publish(ConflictDetected, DetectedPayload{PairCount: 3, ConflictCount: 1})
	broker.Publish(InboundConflictDetected, nil) // sync.* does not match conflict.*

	require.Len(t, got, 1)
	assert.Equal(t, ConflictDetected, got[0])
}

func TestBrokerClose(t *testing.T) {
	tl := logging.NewTestLogger(t)
	broker := NewBroker(tl.Logger)

	col := NewCollector()
	broker.Subscribe("*", col)
	require.NoError(t, broker.Close())

	broker.Publish(ConflictDetected, nil)
	assert.Empty(t, col.Events())
}
