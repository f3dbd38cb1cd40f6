package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchStrings(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, BatchStrings(items, 2))
	assert.Equal(t, [][]string{{"a", "b", "c", "d", "e"}}, BatchStrings(items, 30))
	assert.Equal(t, [][]string{{"a", "b", "c", "d", "e"}}, BatchStrings(items, 0))
	assert.Empty(t, BatchStrings(nil, 3))
}

func TestBatchStrings_ExactMultiple(t *testing.T) {
	items := make([]string, 60)
	for i := range items {
		items[i] = "x"
	}
	batches := BatchStrings(items, 30)
	assert.Len(t, batches, 2)
	assert.Len(t, batches[0], 30)
	assert.Len(t, batches[1], 30)
}

func TestCompactStrings(t *testing.T) {
	got := CompactStrings([]string{"", " A ", "B", "A", "   ", "C"})
	assert.Equal(t, []string{"A", "B", "C"}, got)
	assert.Empty(t, CompactStrings([]string{"", " "}))
}

func TestGetEnv(t *testing.T) {
	t.Setenv("HOLDINGS_TEST_ENV", "value")
	assert.Equal(t, "value", GetEnv("HOLDINGS_TEST_ENV", "fallback"))
	assert.Equal(t, "fallback", GetEnv("HOLDINGS_TEST_ENV_MISSING", "fallback"))
}
