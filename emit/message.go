// Package emit delivers beat notifications as UDP datagrams.
package emit

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Prefix starts every beat message
const Prefix = "BEAT:"

// ErrMalformed is returned for datagrams that are not beat messages
var ErrMalformed = errors.New("emit: malformed beat message")

// FormatBeat renders a tempo as "BEAT:<bpm>". Integral tempos keep a
// trailing ".0" so receivers always see a decimal.
func FormatBeat(bpm float64) string {
	s := strconv.FormatFloat(bpm, 'f', -1, 64)
	if !math.IsInf(bpm, 0) && !math.IsNaN(bpm) && bpm == math.Trunc(bpm) {
		s += ".0"
	}
	return Prefix + s
}

// ParseBeat extracts the tempo from a beat message.
func ParseBeat(msg string) (float64, error) {
	value, ok := strings.CutPrefix(strings.TrimSpace(msg), Prefix)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, msg)
	}
	bpm, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrMalformed, msg, err)
	}
	return bpm, nil
}
