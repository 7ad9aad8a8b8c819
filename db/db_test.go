package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	_, err := Open("", "")
	assert.ErrorIs(t, err, ErrNoDatabase)

	_, err = Open("not a dsn", "")
	assert.Error(t, err)

	db, err := Open("", "file::memory:?cache=shared")
	require.NoError(t, err)
	require.NotNil(t, db)
	assert.Equal(t, "sqlite", db.Dialector.Name())
}
