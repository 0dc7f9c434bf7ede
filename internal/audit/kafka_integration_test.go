//go:build integration

package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"coalesce/pkg/testutil/containers"
)

func TestKafkaPublisher_EmitRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	rp := containers.NewRedpandaContainer(t)
	ctx := context.Background()

	const topic = "contact-audit-test"
	publisher, err := NewKafkaPublisher([]string{rp.Broker}, topic)
	require.NoError(t, err)
	t.Cleanup(publisher.Close)

	sent := Event{
		Action:           ActionClustersMerged,
		PrimaryContactID: 1,
		ContactID:        3,
		DemotedIDs:       []int64{2},
		RequestID:        "req-1",
	}
	require.NoError(t, publisher.Emit(ctx, sent))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	fetches := consumer.PollFetches(fetchCtx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, []byte("1"), records[0].Key, "records are keyed by the surviving primary")

	var got Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, ActionClustersMerged, got.Action)
	assert.Equal(t, int64(1), got.PrimaryContactID)
	assert.Equal(t, int64(3), got.ContactID)
	assert.Equal(t, []int64{2}, got.DemotedIDs)
	assert.Equal(t, "req-1", got.RequestID)
	assert.NotEmpty(t, got.ID, "publisher must stamp an event id")
	assert.False(t, got.Timestamp.IsZero())
}

func TestKafkaPublisher_ToleratesExistingTopic(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	rp := containers.NewRedpandaContainer(t)

	const topic = "contact-audit-existing"
	first, err := NewKafkaPublisher([]string{rp.Broker}, topic)
	require.NoError(t, err)
	first.Close()

	second, err := NewKafkaPublisher([]string{rp.Broker}, topic)
	require.NoError(t, err)
	second.Close()
}
