package events

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"pitaka.app/internal/bank"
)

// Sink is a named publisher.
type Sink struct {
	Name      string
	Publisher bank.Publisher
}

// Multi delivers each event to every sink. A failing sink does not stop the others;
// failures are logged, reported to onFailure and joined into the returned error.
type Multi struct {
	sinks     []Sink
	log       *zap.Logger
	onFailure func(sink string)
}

var _ bank.Publisher = (*Multi)(nil)

func NewMulti(log *zap.Logger, onFailure func(sink string), sinks ...Sink) *Multi {
	if log == nil {
		log = zap.NewNop()
	}
	return &Multi{sinks: sinks, log: log, onFailure: onFailure}
}

func (m *Multi) Publish(ctx context.Context, evt bank.Event) error {
	var errs []error
	for _, s := range m.sinks {
		if s.Publisher == nil {
			continue
		}
		if err := s.Publisher.Publish(ctx, evt); err != nil {
			m.log.Warn("event sink rejected event",
				zap.String("sink", s.Name),
				zap.String("type", string(evt.Type)),
				zap.String("reference", evt.Reference),
				zap.Error(err))
			if m.onFailure != nil {
				m.onFailure(s.Name)
			}
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}
