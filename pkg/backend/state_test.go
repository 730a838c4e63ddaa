package backend

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/padlock/pkg/api"
)

func TestStateWriteReadRoundTrip(t *testing.T) {
	b := NewStateBackend("/")

	require.NoError(t, b.Write("/plan.md", []byte("# plan")))

	rec, err := b.Read("/plan.md")
	require.NoError(t, err)
	assert.Equal(t, []byte("# plan"), rec.Content)
	assert.Equal(t, int64(6), rec.Size)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestStateReadIsolatedFromCallerMutation(t *testing.T) {
	b := NewStateBackend("/")
	require.NoError(t, b.Write("/f", []byte("abc")))

	rec, err := b.Read("/f")
	require.NoError(t, err)
	rec.Content[0] = 'X'

	rec2, err := b.Read("/f")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), rec2.Content)
}

func TestStateOverwritePreservesCreatedAt(t *testing.T) {
	b := NewStateBackend("/")
	require.NoError(t, b.Write("/f", []byte("one")))

	first, err := b.Read("/f")
	require.NoError(t, err)

	require.NoError(t, b.Write("/f", []byte("two")))
	second, err := b.Read("/f")
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, []byte("two"), second.Content)
}

func TestStateReadErrors(t *testing.T) {
	b := NewStateBackend("/")
	require.NoError(t, b.Write("/reports/q1.md", nil))

	_, err := b.Read("/missing")
	assert.ErrorIs(t, err, api.ErrNotFound)

	_, err = b.Read("/reports")
	assert.ErrorIs(t, err, api.ErrIsADirectory)

	_, err = b.Read("/")
	assert.ErrorIs(t, err, api.ErrIsADirectory)
}

func TestStateWriteOntoImpliedDirectory(t *testing.T) {
	b := NewStateBackend("/")
	require.NoError(t, b.Write("/reports/q1.md", nil))

	err := b.Write("/reports", []byte("x"))
	assert.ErrorIs(t, err, api.ErrIsADirectory)
}

func TestStateList(t *testing.T) {
	b := NewStateBackend("/")
	require.NoError(t, b.Write("/a.txt", []byte("a")))
	require.NoError(t, b.Write("/docs/b.txt", []byte("bb")))
	require.NoError(t, b.Write("/docs/deep/c.txt", []byte("ccc")))

	entries, err := b.List("/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.txt", entries[0].Name)
	assert.False(t, entries[0].IsDir)
	assert.Equal(t, "docs", entries[1].Name)
	assert.True(t, entries[1].IsDir)

	entries, err = b.List("/docs")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b.txt", entries[0].Name)
	assert.Equal(t, "deep", entries[1].Name)
}

func TestStateListErrors(t *testing.T) {
	b := NewStateBackend("/")
	require.NoError(t, b.Write("/f.txt", nil))

	_, err := b.List("/nope")
	assert.ErrorIs(t, err, api.ErrNotFound)

	_, err = b.List("/f.txt")
	assert.ErrorIs(t, err, api.ErrNotADirectory)
}

func TestStateDeleteSoftDeletes(t *testing.T) {
	b := NewStateBackend("/")
	require.NoError(t, b.Write("/junk.tmp", []byte("junk")))
	require.NoError(t, b.Delete("/junk.tmp"))

	_, err := b.Read("/junk.tmp")
	assert.ErrorIs(t, err, api.ErrNotFound)

	entries, err := b.List("/" + TrashDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name, "junk_"))

	// deleting from the trash is permanent
	require.NoError(t, b.Delete("/"+TrashDir+"/"+entries[0].Name))
	_, err = b.List("/" + TrashDir)
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestStateDeleteImpliedDirectory(t *testing.T) {
	b := NewStateBackend("/")
	require.NoError(t, b.Write("/tmp/a", []byte("a")))
	require.NoError(t, b.Write("/tmp/sub/b", []byte("b")))
	require.NoError(t, b.Delete("/tmp"))

	_, err := b.List("/tmp")
	assert.ErrorIs(t, err, api.ErrNotFound)

	entries, err := b.List("/" + TrashDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsDir)
}

func TestStateMove(t *testing.T) {
	b := NewStateBackend("/")
	require.NoError(t, b.Write("/draft.md", []byte("text")))
	require.NoError(t, b.Move("/draft.md", "/final/report.md"))

	_, err := b.Read("/draft.md")
	assert.ErrorIs(t, err, api.ErrNotFound)

	rec, err := b.Read("/final/report.md")
	require.NoError(t, err)
	assert.Equal(t, []byte("text"), rec.Content)
}

func TestStateMoveOntoExisting(t *testing.T) {
	b := NewStateBackend("/")
	require.NoError(t, b.Write("/src", []byte("src")))
	require.NoError(t, b.Write("/dst", []byte("dst")))

	assert.ErrorIs(t, b.Move("/src", "/dst"), api.ErrAlreadyExists)

	rec, err := b.Read("/src")
	require.NoError(t, err)
	assert.Equal(t, []byte("src"), rec.Content)
}

func TestStateMoveSubtree(t *testing.T) {
	b := NewStateBackend("/")
	require.NoError(t, b.Write("/old/a", []byte("a")))
	require.NoError(t, b.Write("/old/sub/b", []byte("b")))
	require.NoError(t, b.Move("/old", "/new"))

	rec, err := b.Read("/new/sub/b")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), rec.Content)
}

func TestStateMoveIntoOwnSubtreeRejected(t *testing.T) {
	b := NewStateBackend("/")
	for i := 0; i < 64; i++ {
		require.NoError(t, b.Write(fmt.Sprintf("/a/f%02d", i), []byte("x")))
	}

	err := b.Move("/a", "/a/c")
	assert.ErrorIs(t, err, api.ErrInvalidArgument)

	// store untouched: same children, nothing nested deeper
	entries, err := b.List("/a")
	require.NoError(t, err)
	require.Len(t, entries, 64)
	for _, e := range entries {
		assert.False(t, e.IsDir, e.Name)
	}
}

func TestStateListDirectoryModTimeIsNewestChild(t *testing.T) {
	b := NewStateBackend("/")
	require.NoError(t, b.Write("/d/old.txt", nil))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, b.Write("/d/new.txt", nil))

	newest, err := b.Read("/d/new.txt")
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		entries, err := b.List("/")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.True(t, entries[0].ModTime.Equal(newest.ModifiedAt))
	}
}

func TestStateMountPrefix(t *testing.T) {
	b := NewStateBackend("/memo")
	require.NoError(t, b.Write("/memo/x", []byte("x")))

	_, err := b.Read("/elsewhere/x")
	assert.ErrorIs(t, err, api.ErrInvalidPath)

	_, err = b.Read("/memo/../x")
	assert.ErrorIs(t, err, api.ErrPathOutsideRoot)
}

func TestStateConcurrentWriters(t *testing.T) {
	b := NewStateBackend("/")

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("/f%d", i%4)
			assert.NoError(t, b.Write(path, []byte(fmt.Sprintf("writer %d", i))))
			_, _ = b.Read(path)
		}(i)
	}
	wg.Wait()

	entries, err := b.List("/")
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestStateSnapshotRestore(t *testing.T) {
	b := NewStateBackend("/")
	require.NoError(t, b.Write("/a.txt", []byte("alpha")))
	require.NoError(t, b.Write("/docs/b.txt", []byte("beta")))

	snap, err := b.Snapshot()
	require.NoError(t, err)

	restored := NewStateBackend("/")
	require.NoError(t, restored.Restore(snap))

	rec, err := restored.Read("/a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("alpha"), rec.Content)

	orig, err := b.Read("/docs/b.txt")
	require.NoError(t, err)
	got, err := restored.Read("/docs/b.txt")
	require.NoError(t, err)
	assert.Equal(t, orig.Content, got.Content)
	assert.True(t, orig.CreatedAt.Equal(got.CreatedAt))
}

func TestStateRestoreRejectsGarbage(t *testing.T) {
	b := NewStateBackend("/")
	err := b.Restore([]byte("not cbor at all"))
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}
