package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "run.completed", map[string]string{"run_id": "a"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "zones.completed", []string{"R1"})
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "run.completed", msgs[0].Event)
	require.JSONEq(t, `{"run_id":"a"}`, string(msgs[0].Data))
	require.JSONEq(t, `["R1"]`, string(msgs[1].Data))

	msgs[0].Event = "modified"
	require.Equal(t, "run.completed", pub.Messages()[0].Event, "Messages() must return a copy")
}

func TestPublisherRejectsUnencodable(t *testing.T) {
	t.Parallel()

	_, err := New().Publish(context.Background(), "bad", make(chan int))
	require.Error(t, err)
	require.Empty(t, New().Messages())
}
