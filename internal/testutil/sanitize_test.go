//go:build integration

package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeDBName(t *testing.T) {
	name := SanitizeDBName("TestCache/sub test.with.dots")

	assert.True(t, strings.HasPrefix(name, "TestCache_sub_test_with_dots_"))
	assert.NotContains(t, name, "/")
	assert.NotContains(t, name, ".")

	long := SanitizeDBName(strings.Repeat("x", 80))
	assert.LessOrEqual(t, len(long), 50+1+6)
}
