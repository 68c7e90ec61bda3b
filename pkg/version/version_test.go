package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoIncludesAllFields(t *testing.T) {
	s := Info()
	assert.Contains(t, s, Version)
	assert.Contains(t, s, Commit)
	assert.Contains(t, s, BuildDate)
}

func TestGet(t *testing.T) {
	got := Get()
	assert.Equal(t, Version, got.Version)
	assert.Equal(t, Commit, got.Commit)
	assert.Equal(t, BuildDate, got.BuildDate)
}
