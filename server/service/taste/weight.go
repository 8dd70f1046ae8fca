package taste

import (
	"errors"
	"fmt"
	"math"

	"github.com/hrygo/tastevec/store"
)

// ErrInvalidWeight is returned for weights outside [0, 1].
var ErrInvalidWeight = errors.New("feedback weight must be within [0, 1]")

// Weight is how strongly a feedback event pulls the taste vector toward the
// content: 0 leaves it unchanged, 1 replaces it.
type Weight float32

const (
	// WeightLike is applied for an explicit like.
	WeightLike Weight = 0.5
	// WeightWatchComplete is applied when the user finishes watching.
	WeightWatchComplete Weight = 0.3
)

// ParseWeight validates a caller supplied weight.
func ParseWeight(v float64) (Weight, error) {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidWeight, v)
	}
	return Weight(v), nil
}

// WeightForKind returns the preset weight of an interaction kind.
func WeightForKind(kind store.InteractionKind) (Weight, error) {
	switch kind {
	case store.InteractionLike:
		return WeightLike, nil
	case store.InteractionWatchComplete:
		return WeightWatchComplete, nil
	default:
		return 0, fmt.Errorf("unknown interaction kind %q", kind)
	}
}
