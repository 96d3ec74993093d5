package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Len(t, a, 36)
	assert.Equal(t, a[:8], ShortID(a))
}

func TestShortID_Short(t *testing.T) {
	assert.Equal(t, "abc", ShortID("abc"))
}
