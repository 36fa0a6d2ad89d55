// Package objectstore_test tests the NATS-backed audio store.
package objectstore_test

import (
	"context"
	"testing"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/lutaSci/voxcpm-service/internal/objectstore"
)

// startTestServer starts an in-memory NATS server with JetStream enabled.
func startTestServer(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	return natsServer, natsConnection
}

func newTestStore(t *testing.T, bucket string) *objectstore.AudioStore {
	t.Helper()

	natsServer, natsConnection := startTestServer(t)
	t.Cleanup(natsServer.Shutdown)
	t.Cleanup(natsConnection.Close)

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	store, err := objectstore.New(jetstreamContext, bucket)
	require.NoError(t, err)

	return store
}

func TestAudioStoreUploadDownload(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, "generated-audio-test")

	ctx := context.Background()
	key := "artifact-1234"
	uploadData := []byte("RIFF fake wav payload for the round trip")

	err := store.Upload(ctx, key, uploadData)
	require.NoError(t, err)

	downloadData, err := store.Download(ctx, key)
	require.NoError(t, err)
	require.Equal(t, uploadData, downloadData)
}

func TestAudioStoreDelete(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, "generated-audio-delete-test")

	ctx := context.Background()
	key := "artifact-to-delete"

	err := store.Upload(ctx, key, []byte("payload"))
	require.NoError(t, err)

	err = store.Delete(ctx, key)
	require.NoError(t, err)

	_, err = store.Download(ctx, key)
	require.Error(t, err)
}

func TestAudioStoreOverwrite(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, "generated-audio-overwrite-test")

	ctx := context.Background()
	key := "artifact-overwrite"

	err := store.Upload(ctx, key, []byte("first"))
	require.NoError(t, err)

	err = store.Upload(ctx, key, []byte("second"))
	require.NoError(t, err)

	data, err := store.Download(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []byte("second"), data)
}
