package thermal

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "codeberg.org/mutker/thermald/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCritical(t *testing.T) {
	tests := []struct {
		name      string
		raw       Celsius
		triggered bool
	}{
		{"below threshold", 94.9, false},
		{"at threshold", 95, true},
		{"above threshold", 120, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown := &fakeShutdown{}
			recorder := newFakeRecorder()
			s := NewSafetyMonitor(95, shutdown, recorder)

			triggered, err := s.CheckCritical(context.Background(), time.Minute, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.triggered, triggered)

			if !tt.triggered {
				assert.Empty(t, shutdown.requests)
				assert.Empty(t, recorder.ends)
				return
			}

			assert.Equal(t, []ShutdownRequest{{Reboot: true, Reason: ReasonHighTemperature}}, shutdown.requests)
			assert.Equal(t, []throttleEnd{{ts: time.Minute, reason: ThrottleEndShutdown}}, recorder.ends)
		})
	}
}

func TestCheckCriticalDeliveryFailure(t *testing.T) {
	shutdown := &fakeShutdown{err: errors.New("no route")}
	s := NewSafetyMonitor(95, shutdown, NopRecorder{})

	triggered, err := s.CheckCritical(context.Background(), 0, 99)
	assert.True(t, triggered)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, ErrShutdownFailed))
	assert.Len(t, shutdown.requests, 1)
}
