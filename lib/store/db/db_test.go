package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	s, err := New(MEMORY, "")
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.NoError(t, Close(MEMORY, s))

	s, err = New(SQLITE, filepath.Join(t.TempDir(), "w.db"))
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.NoError(t, Close(SQLITE, s))

	_, err = New("cassandra", "localhost")
	assert.Error(t, err)
}
