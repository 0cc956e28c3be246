package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func TestPublishSendsJSON(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "castcrawler-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "runs")
	require.NoError(t, err)

	pub := New(topic)
	defer pub.Stop()

	id, err := pub.Publish(ctx, "runs", map[string]any{"run_id": "r1", "credits": 3})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	var got map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, "r1", got["run_id"])
	assert.Equal(t, "application/json", msgs[0].Attributes["content-type"])
}

func TestPublishUnconfigured(t *testing.T) {
	t.Parallel()

	var pub *Publisher
	_, err := pub.Publish(context.Background(), "runs", "x")
	require.Error(t, err)
	pub.Stop()

	_, err = New(nil).Publish(context.Background(), "runs", "x")
	require.Error(t, err)
}

func TestPublishRejectsUnencodablePayload(t *testing.T) {
	t.Parallel()

	pub := &Publisher{topic: &pubsub.Topic{}}
	_, err := pub.Publish(context.Background(), "runs", make(chan int))
	require.ErrorContains(t, err, "marshal payload")
}

func TestCarrier(t *testing.T) {
	t.Parallel()

	c := &pubsubCarrier{attrs: map[string]string{}}
	c.Set("traceparent", "00-abc-def-01")
	assert.Equal(t, "00-abc-def-01", c.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, c.Keys())
}
