package metadata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelcrate/pixelcrate/internal/storage/local"
)

func TestLoadMissingDocument(t *testing.T) {
	backend, err := local.New(t.TempDir())
	require.NoError(t, err)

	store := NewStore(backend)
	records := store.Load(context.Background())
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	backend, err := local.New(t.TempDir())
	require.NoError(t, err)

	store := NewStore(backend)
	ctx := context.Background()

	in := map[string]Record{
		"widget_a1b2c3d4.png": {
			SourceURL:          "https://www.example.com/p/1",
			ProductName:        "Widget",
			ProductDescription: "A widget.",
			UploadedAt:         time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}
	require.NoError(t, store.Save(ctx, in))

	out := store.Load(ctx)
	require.Len(t, out, 1)
	assert.Equal(t, in["widget_a1b2c3d4.png"], out["widget_a1b2c3d4.png"])
}

func TestLoadCorruptDocument(t *testing.T) {
	backend, err := local.New(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	_, err = backend.Put(ctx, DocumentKey, []byte("{not json"), "application/json")
	require.NoError(t, err)

	store := NewStore(backend)
	records := store.Load(ctx)
	assert.Empty(t, records, "corrupt document must yield an empty map, not an error")
}

func TestSaveOverwrites(t *testing.T) {
	backend, err := local.New(t.TempDir())
	require.NoError(t, err)

	store := NewStore(backend)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, map[string]Record{"a.png": {ProductName: "A"}}))
	require.NoError(t, store.Save(ctx, map[string]Record{"b.png": {ProductName: "B"}}))

	out := store.Load(ctx)
	require.Len(t, out, 1)
	_, ok := out["b.png"]
	assert.True(t, ok, "second save must fully replace the first")
}
