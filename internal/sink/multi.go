package sink

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// Multi writes to a primary sink and mirrors new rows to secondaries. Only
// the primary decides the outcome; secondary failures are logged.
type Multi struct {
	Primary     Sink
	Secondaries []Sink
}

func (m *Multi) Append(ctx context.Context, row Row) (bool, error) {
	added, err := m.Primary.Append(ctx, row)
	if err != nil {
		return false, err
	}
	// duplicates were already mirrored when first written
	if !added {
		return false, nil
	}
	for _, s := range m.Secondaries {
		if _, serr := s.Append(ctx, row); serr != nil {
			log.Warn().Err(serr).Str("url", row.URL).Msg("secondary sink append failed")
		}
	}
	return true, nil
}

func (m *Multi) Close() error {
	errs := []error{m.Primary.Close()}
	for _, s := range m.Secondaries {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
