package storage

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/hack-pad/hackpadfs/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memProvider(t *testing.T) *Hackpad {
	t.Helper()
	fsys, err := mem.NewFS()
	require.NoError(t, err)
	return NewHackpad(fsys)
}

func TestHackpad_WriteReadUnlink(t *testing.T) {
	p := memProvider(t)

	require.NoError(t, p.WriteFile("notes/a.md", []byte("alpha")))
	data, err := p.ReadFile("notes/a.md")
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))

	// Leading slashes are tolerated and resolve to the same file.
	data, err = p.ReadFile("/notes/a.md")
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))

	require.NoError(t, p.Unlink("notes/a.md"))
	_, err = p.ReadFile("notes/a.md")
	assert.True(t, errors.Is(err, fs.ErrNotExist), "got %v", err)
}

func TestHackpad_ExistsStatReadDir(t *testing.T) {
	p := memProvider(t)
	require.NoError(t, p.WriteFile("b.md", []byte("b")))
	require.NoError(t, p.WriteFile("a.md", []byte("a")))
	require.NoError(t, p.Mkdir("sub/deeper"))

	ok, err := p.Exists("a.md")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = p.Exists("zzz.md")
	require.NoError(t, err)
	assert.False(t, ok)

	info, err := p.Stat("a.md")
	require.NoError(t, err)
	assert.True(t, info.IsFile)
	assert.False(t, info.IsDir)

	info, err = p.Stat("sub")
	require.NoError(t, err)
	assert.True(t, info.IsDir)

	names, err := p.ReadDir("")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "b.md", "sub"}, names)

	names, err = p.ReadDir("sub")
	require.NoError(t, err)
	assert.Equal(t, []string{"deeper"}, names)
}

func TestHackpad_RootMkdirIsNoop(t *testing.T) {
	p := memProvider(t)
	assert.NoError(t, p.Mkdir(""))
}
