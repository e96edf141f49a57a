package pagination

import (
	"errors"
	"fmt"
)

const (
	// DefaultBatchSize defines the fallback number of matches returned when the client omits batch_size.
	DefaultBatchSize = 4
	// DefaultMaxBatchSize caps the supported batch_size to prevent unbounded responses.
	DefaultMaxBatchSize = 20
)

// ErrInvalidBatchSize flags a batch_size value the API cannot honour.
var ErrInvalidBatchSize = errors.New("pagination: invalid batch_size")

// Options control how batch sizes are normalised for a given handler layer.
type Options struct {
	DefaultBatchSize int
	MaxBatchSize     int
}

// BatchSize normalises a client-supplied batch size. A nil value selects the
// configured default; zero and negative values are rejected; oversized values
// are clamped to the maximum.
func BatchSize(requested *int, opts Options) (int, error) {
	maxSize := opts.MaxBatchSize
	if maxSize <= 0 {
		maxSize = DefaultMaxBatchSize
	}

	defaultSize := opts.DefaultBatchSize
	if defaultSize <= 0 {
		defaultSize = DefaultBatchSize
	}
	if defaultSize > maxSize {
		defaultSize = maxSize
	}

	if requested == nil {
		return defaultSize, nil
	}
	if *requested <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidBatchSize)
	}
	if *requested > maxSize {
		return maxSize, nil
	}
	return *requested, nil
}
