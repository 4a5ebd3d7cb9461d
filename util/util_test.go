package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMin(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(uint64(2), Min(2, 3))
	assert.Equal(uint64(2), Min(3, 2))
	assert.Equal(uint64(2), Min(2, 2))
}

func TestMax(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(uint64(3), Max(2, 3))
	assert.Equal(uint64(3), Max(3, 2))
	assert.Equal(uint64(2), Max(2, 2))
}

func TestRoundUp(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(uint64(4), RoundUp(10, 3))
	assert.Equal(uint64(3), RoundUp(9, 3), "exact division")
	assert.Equal(uint64(0), RoundUp(0, 3))
	assert.Equal(uint64(9), RoundUp(512*8+511, 512))
	assert.Equal(uint64(9), RoundUp(512*8+1, 512), "round up by sz-1")
}
