package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/cornell-notes/internal/note"
)

func newTestClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(context.Background(), "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestPublishSendsEventWithAttributes(t *testing.T) {
	t.Parallel()

	client, srv := newTestClient(t)
	ctx := context.Background()
	_, err := client.CreateTopic(ctx, "cornell-events")
	require.NoError(t, err)

	pub := New(client)
	defer pub.Close()

	ev := note.Event{Type: note.EventAssetOrphaned, UID: "uid-1", Folder: "cornell", Timestamp: time.Unix(1700000000, 0).UTC()}
	id, err := pub.Publish(ctx, "cornell-events", ev)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "asset.orphaned", msgs[0].Attributes["event_type"])
	require.Equal(t, "uid-1", msgs[0].Attributes["uid"])

	var decoded note.Event
	require.NoError(t, json.Unmarshal(msgs[0].Data, &decoded))
	require.Equal(t, ev, decoded)
}

func TestPublishValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Publish(context.Background(), "t", "x")
	require.Error(t, err)

	client, _ := newTestClient(t)
	_, err = New(client).Publish(context.Background(), "", "x")
	require.Error(t, err)

	_, err = New(client).Publish(context.Background(), "t", func() {})
	require.Error(t, err, "unmarshalable payload")
}
