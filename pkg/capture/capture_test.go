package capture

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var jpeg = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

func TestIsImage(t *testing.T) {
	for name, want := range map[string]bool{
		"label.jpg":          true,
		"/tmp/IMG_0001.JPEG": true,
		"shot.png":           true,
		"shot.webp":          true,
		"shot.heic":          true,
		"notes.txt":          false,
		".label.jpg":         false,
		"label.jpg~":         false,
		"label":              false,
	} {
		assert.Equal(t, want, IsImage(name), name)
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "label.jpg")
	require.NoError(t, os.WriteFile(path, jpeg, 0o644))

	c, err := NewFileSource(path).Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, jpeg, c.Data)
	assert.Equal(t, "label.jpg", c.Filename)

	t.Run("missing", func(t *testing.T) {
		_, err := NewFileSource(filepath.Join(dir, "nope.jpg")).Acquire(context.Background())
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		empty := filepath.Join(dir, "empty.jpg")
		require.NoError(t, os.WriteFile(empty, nil, 0o644))
		_, err := NewFileSource(empty).Acquire(context.Background())
		assert.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewFileSource(path).Acquire(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDirWatcher_YieldsNewImages(t *testing.T) {
	dir := t.TempDir()
	w, err := NewDirWatcher(dir, WithSettle(20*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "label.jpg"), jpeg, 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := w.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, "label.jpg", c.Filename)
	assert.Equal(t, jpeg, c.Data)

	short, cancelShort := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancelShort()
	_, err = w.Acquire(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDirWatcher_Close(t *testing.T) {
	w, err := NewDirWatcher(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, w.Close())
	assert.NoError(t, w.Close())

	_, err = w.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewDirWatcher_MissingDir(t *testing.T) {
	_, err := NewDirWatcher(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
