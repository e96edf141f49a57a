package color

import (
	"errors"
	"math"
	"testing"
)

func TestParseHex(t *testing.T) {
	t.Run("parses with and without prefix", func(t *testing.T) {
		cases := map[string]RGB{
			"#FFFFFF": {R: 255, G: 255, B: 255},
			"000000":  {R: 0, G: 0, B: 0},
			"#1A2b3C": {R: 26, G: 43, B: 60},
			" #FF8000 ": {R: 255, G: 128, B: 0},
		}
		for input, want := range cases {
			got, err := ParseHex(input)
			if err != nil {
				t.Fatalf("ParseHex(%q) returned error: %v", input, err)
			}
			if got != want {
				t.Fatalf("ParseHex(%q) = %+v, want %+v", input, got, want)
			}
		}
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		inputs := []string{"", "#", "#FFF", "#FFFFFFF", "#GGGGGG", "12345", "#12 456"}
		for _, input := range inputs {
			if _, err := ParseHex(input); !errors.Is(err, ErrMalformedColor) {
				t.Fatalf("ParseHex(%q) error = %v, want ErrMalformedColor", input, err)
			}
		}
	})
}

func TestDistance(t *testing.T) {
	t.Run("identity is zero", func(t *testing.T) {
		codes := []string{"#000000", "#FFFFFF", "#AABBCC", "#123456"}
		for _, code := range codes {
			c, err := ParseHex(code)
			if err != nil {
				t.Fatalf("ParseHex(%q) returned error: %v", code, err)
			}
			if d := Distance(c, c); d != 0 {
				t.Fatalf("Distance(%q, %q) = %v, want 0", code, code, d)
			}
		}
	})

	t.Run("symmetric", func(t *testing.T) {
		a, _ := ParseHex("#102030")
		b, _ := ParseHex("#CCDDEE")
		if Distance(a, b) != Distance(b, a) {
			t.Fatalf("distance is not symmetric: %v vs %v", Distance(a, b), Distance(b, a))
		}
	})

	t.Run("euclidean", func(t *testing.T) {
		a, _ := ParseHex("#000000")
		b, _ := ParseHex("#000010")
		if got, want := Distance(a, b), 16.0; got != want {
			t.Fatalf("Distance = %v, want %v", got, want)
		}

		c, _ := ParseHex("#010101")
		if got, want := Distance(a, c), math.Sqrt(3); math.Abs(got-want) > 1e-9 {
			t.Fatalf("Distance = %v, want %v", got, want)
		}
	})
}

func TestNormalizeKey(t *testing.T) {
	cases := map[string]string{
		"#aabbcc":   "#AABBCC",
		" #AaBbCc ": "#AABBCC",
		"#AABBCC":   "#AABBCC",
	}
	for input, want := range cases {
		if got := NormalizeKey(input); got != want {
			t.Fatalf("NormalizeKey(%q) = %q, want %q", input, got, want)
		}
	}
}
