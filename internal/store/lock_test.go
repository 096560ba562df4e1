package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLockExclusive(t *testing.T) {
	dir := t.TempDir()

	first := NewFileLock(dir)
	acquired, err := first.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)

	second := NewFileLock(dir)
	acquired, err = second.TryLock()
	require.NoError(t, err)
	assert.False(t, acquired)

	require.NoError(t, first.Unlock())

	acquired, err = second.TryLock()
	require.NoError(t, err)
	assert.True(t, acquired)
	require.NoError(t, second.Unlock())
}

func TestFileLockUnlockWithoutLock(t *testing.T) {
	lock := NewFileLock(t.TempDir())
	assert.NoError(t, lock.Unlock())
}
