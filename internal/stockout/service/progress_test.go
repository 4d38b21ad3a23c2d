package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stockflow/stockflow-backend/internal/stockout/service"
)

func TestComputeProgress_ZeroRequestedIsComplete(t *testing.T) {
	p := service.ComputeProgress(0, 0)
	assert.Equal(t, 100, p.Percent)
	assert.Equal(t, 0, p.Remaining)
	assert.True(t, p.Complete())

	p = service.ComputeProgress(-3, 0)
	assert.Equal(t, 100, p.Percent)
}

func TestComputeProgress_Rounding(t *testing.T) {
	assert.Equal(t, 33, service.ComputeProgress(3, 1).Percent)
	assert.Equal(t, 67, service.ComputeProgress(3, 2).Percent)
	assert.Equal(t, 50, service.ComputeProgress(2, 1).Percent)
}

func TestComputeProgress_ClampsAtHundred(t *testing.T) {
	p := service.ComputeProgress(10, 12)
	assert.Equal(t, 100, p.Percent)
	assert.Equal(t, 0, p.Remaining)
}

func TestComputeProgress_Remaining(t *testing.T) {
	p := service.ComputeProgress(10, 6)
	assert.Equal(t, 4, p.Remaining)
	assert.Equal(t, 60, p.Percent)
	assert.False(t, p.Complete())
}

func TestComputeProgress_MonotoneInProcessed(t *testing.T) {
	requested := 7
	prev := 0
	for processed := 0; processed <= requested+3; processed++ {
		p := service.ComputeProgress(requested, processed)
		assert.GreaterOrEqual(t, p.Percent, prev, "progress must not decrease as items accumulate")
		assert.LessOrEqual(t, p.Percent, 100)
		prev = p.Percent
	}
}
