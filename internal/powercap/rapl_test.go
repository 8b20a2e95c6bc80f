package powercap

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	apperrors "codeberg.org/mutker/thermald/internal/errors"
	"codeberg.org/mutker/thermald/internal/logger"
	"codeberg.org/mutker/thermald/internal/thermal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newZone(t *testing.T, maxPower string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, powerLimitFile), []byte("15000000\n"), 0o644))
	if maxPower != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, maxPowerFile), []byte(maxPower), 0o644))
	}
	return dir
}

func readLimit(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, powerLimitFile))
	require.NoError(t, err)
	return string(data)
}

func TestRaplSetMaxPowerConsumption(t *testing.T) {
	tests := []struct {
		name      string
		maxPower  string
		offered   thermal.Watts
		wantUsed  thermal.Watts
		wantLimit string
	}{
		{"within range", "45000000\n", 12.5, 12.5, "12500000"},
		{"clamped to max", "45000000\n", 60, 45, "45000000"},
		{"negative offer", "45000000\n", -1, 0, "0"},
		{"no published max", "", 100, 100, "100000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newZone(t, tt.maxPower)
			actor := NewRaplActor("package-0", dir, logger.Nop())

			used, err := actor.SetMaxPowerConsumption(context.Background(), tt.offered)
			require.NoError(t, err)
			assert.InDelta(t, float64(tt.wantUsed), float64(used), 1e-9)
			assert.Equal(t, tt.wantLimit, readLimit(t, dir))

			current, err := actor.CurrentLimit()
			require.NoError(t, err)
			assert.InDelta(t, float64(tt.wantUsed), float64(current), 1e-9)
		})
	}
}

func TestRaplErrors(t *testing.T) {
	t.Run("non-finite offer", func(t *testing.T) {
		for _, offered := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
			dir := newZone(t, "45000000\n")
			used, err := NewRaplActor("package-0", dir, logger.Nop()).SetMaxPowerConsumption(context.Background(), thermal.Watts(offered))
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, ErrInvalidOffer))
			assert.Zero(t, used)
			assert.Equal(t, "15000000\n", readLimit(t, dir))
		}
	})

	t.Run("unreadable max", func(t *testing.T) {
		dir := newZone(t, "garbage")
		_, err := NewRaplActor("package-0", dir, logger.Nop()).SetMaxPowerConsumption(context.Background(), 1)
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, ErrReadConstraint))
	})

	t.Run("missing zone", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "missing")
		_, err := NewRaplActor("package-0", dir, logger.Nop()).SetMaxPowerConsumption(context.Background(), 1)
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, ErrWriteConstraint))
	})
}
