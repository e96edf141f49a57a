package color

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedColor indicates a hex code that cannot be parsed into RGB.
var ErrMalformedColor = errors.New("color: malformed hex code")

// RGB is a color expressed as red/green/blue channels in [0,255].
type RGB struct {
	R uint8
	G uint8
	B uint8
}

// ParseHex converts a 6-digit hexadecimal color, optionally prefixed with '#',
// into its RGB channels. Anything else wraps ErrMalformedColor; callers that
// batch-process catalog codes filter on that error instead of propagating it.
func ParseHex(hex string) (RGB, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(trimmed) != 6 {
		return RGB{}, fmt.Errorf("%w: %q", ErrMalformedColor, hex)
	}

	value, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("%w: %q", ErrMalformedColor, hex)
	}

	return RGB{
		R: uint8(value >> 16),
		G: uint8(value >> 8),
		B: uint8(value),
	}, nil
}

// Distance returns the Euclidean distance between two colors in plain RGB
// space. No perceptual weighting is applied.
func Distance(a, b RGB) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// NormalizeKey canonicalises a hex code for use as a pagination key. Casing is
// folded to upper so that "#aabbcc" and "#AABBCC" share one cursor; the '#'
// prefix is preserved.
func NormalizeKey(hex string) string {
	return strings.ToUpper(strings.TrimSpace(hex))
}
