package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_parseDate(t *testing.T) {
	d, err := parseDate("2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), d)

	d, err = parseDate("1700000000")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), d.Unix())

	_, err = parseDate("01/03/2025")
	require.Error(t, err)
}
