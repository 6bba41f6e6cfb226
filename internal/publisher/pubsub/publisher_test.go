package pubsub_test

import (
	"context"
	"encoding/json"
	"testing"

	gpubsub "cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/feed-aggregator/internal/publisher/pubsub"
)

func newFakeClient(t *testing.T) (*gpubsub.Client, *pstest.Server) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := gpubsub.NewClient(ctx, "feeds-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestPublishSendsJSON(t *testing.T) {
	ctx := context.Background()
	client, srv := newFakeClient(t)

	_, err := client.CreateTopic(ctx, "feed-rendered")
	require.NoError(t, err)

	pub := pubsub.New(client)
	defer pub.Close()

	id, err := pub.Publish(ctx, "feed-rendered", map[string]any{"uri": "gs://feeds/feed.xml", "entries": 3})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "application/json", msgs[0].Attributes["content-type"])

	var got map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, "gs://feeds/feed.xml", got["uri"])
	assert.EqualValues(t, 3, got["entries"])
}

func TestPublishMissingTopicFails(t *testing.T) {
	client, _ := newFakeClient(t)
	pub := pubsub.New(client)
	defer pub.Close()

	_, err := pub.Publish(context.Background(), "does-not-exist", "x")
	assert.Error(t, err)
}

func TestPublishValidatesInput(t *testing.T) {
	_, err := pubsub.New(nil).Publish(context.Background(), "t", "x")
	assert.Error(t, err)

	client, _ := newFakeClient(t)
	pub := pubsub.New(client)
	_, err = pub.Publish(context.Background(), "", "x")
	assert.Error(t, err)

	_, err = pub.Publish(context.Background(), "t", make(chan int))
	assert.Error(t, err)
}
