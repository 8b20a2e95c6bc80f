package thermal

import (
	"context"
	"fmt"

	"codeberg.org/mutker/thermald/internal/errors"
)

// Distributor splits a power budget across actors, first come first served.
type Distributor struct {
	actors   []PowerActor
	recorder Recorder
}

func NewDistributor(actors []PowerActor, recorder Recorder) *Distributor {
	return &Distributor{actors: actors, recorder: recorder}
}

// Distribute offers the remaining budget to each actor in order. An actor
// failure stops the distribution; allocations already applied stay in place.
func (d *Distributor) Distribute(ctx context.Context, total Watts) error {
	remaining := total
	for i, actor := range d.actors {
		used, err := actor.SetMaxPowerConsumption(ctx, remaining)
		if err != nil {
			return errors.New().Wrap(ErrPowerDistribution, err).
				WithData(fmt.Sprintf("actor %d offered %.3fW", i, float64(remaining)))
		}

		d.recorder.RecordActorPower(i, used)
		remaining -= used
	}

	return nil
}
