//go:build thermaldebug

package thermal

import (
	"testing"

	"codeberg.org/mutker/thermald/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestCalculateThermalLoadPanicsOutOfRange(t *testing.T) {
	assert.Panics(t, func() { calculateThermalLoad(logger.Nop(), -21, -20, 0) })
	assert.Panics(t, func() { calculateThermalLoad(logger.Nop(), 0.5, -20, 0) })
}
