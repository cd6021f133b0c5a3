package gcs

import (
	"context"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(nil, Config{Bucket: "docs"})
	assert.ErrorContains(t, err, "storage client is required")

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = New(client, Config{})
	assert.ErrorContains(t, err, "bucket name is required")
}

func TestObjectNameAppliesPrefix(t *testing.T) {
	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, Config{Bucket: "docs", Prefix: "/seimas/"})
	require.NoError(t, err)
	assert.Equal(t, "seimas/protocol_1_2_x.txt", store.objectName("protocol_1_2_x.txt"))

	bare, err := New(client, Config{Bucket: "docs"})
	require.NoError(t, err)
	assert.Equal(t, "protocol_1_2_x.txt", bare.objectName("protocol_1_2_x.txt"))
}

func TestEmptyPathIsRejected(t *testing.T) {
	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, Config{Bucket: "docs"})
	require.NoError(t, err)

	_, err = store.Exists(context.Background(), " ")
	assert.Error(t, err)
	_, err = store.PutObject(context.Background(), "", "text/plain", nil)
	assert.Error(t, err)
}
