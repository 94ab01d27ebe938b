package spectral

import (
	"fmt"
	"io"
	"strings"

	"github.com/RyanBlaney/sonido-pulse/algorithms/common"
)

// Profile is the per-band log energy of one frame, lowest band first.
type Profile []float64

// Band returns the value of band i and whether it is usable.
// Out-of-range indices and non-finite values are not usable.
func (p Profile) Band(i int) (float64, bool) {
	if i < 0 || i >= len(p) {
		return 0, false
	}
	v := p[i]
	return v, common.IsFinite(v)
}

// Render writes the profile as a bar graph, one row per band: one '*' per
// whole unit of energy followed by the value. Non-finite bands are skipped.
func (p Profile) Render(w io.Writer) error {
	var sb strings.Builder
	for _, v := range p {
		if !common.IsFinite(v) {
			continue
		}
		if v >= 1 {
			sb.WriteString(strings.Repeat("*", int(v)))
		}
		fmt.Fprintf(&sb, "%24s%v\n", "", v)
	}
	sb.WriteString("\n\n\n")

	_, err := io.WriteString(w, sb.String())
	return err
}
