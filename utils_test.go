package xval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCeilLog(t *testing.T) {
	assert.Equal(t, 1, ceilLog(1, 2))
	assert.Equal(t, 1, ceilLog(2, 2))
	assert.Equal(t, 2, ceilLog(3, 2))
	assert.Equal(t, 3, ceilLog(8, 2))
	assert.Equal(t, 4, ceilLog(9, 2))
	assert.Equal(t, 3, ceilLog(27, 3))
	assert.Equal(t, 5, ceilLog(243, 3))
}

func TestFloorLog(t *testing.T) {
	assert.Equal(t, 0, floorLog(0.5, 2))
	assert.Equal(t, 0, floorLog(2, 3))
	assert.Equal(t, 2, floorLog(9, 3))
	assert.Equal(t, 4, floorLog(81, 3))
	assert.Equal(t, 4, floorLog(100, 3))
}

func TestRank(t *testing.T) {
	losses := []float64{3, 1, 2, 1}

	assert.Equal(t, []int{1, 3, 2, 0}, rank(losses, false))
	assert.Equal(t, []int{0, 2, 1, 3}, rank(losses, true))
	assert.Equal(t, 1, argbest(losses, false))
	assert.Equal(t, 0, argbest(losses, true))
}

func TestRounding(t *testing.T) {
	assert.Equal(t, 6, floorTo[int](6.75))
	assert.Equal(t, 7, roundTo[int](6.75))
	assert.Equal(t, 6.75, floorTo[float64](6.75))
	assert.Equal(t, uint8(3), roundTo[uint8](2.5))
	assert.True(t, isIntegral[int64]())
	assert.False(t, isIntegral[float32]())
}
