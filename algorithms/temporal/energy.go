package temporal

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// FullScale16 is the magnitude of a full scale 16-bit sample
const FullScale16 = 32768.0

// minLevelDB is reported for digital silence instead of -Inf
const minLevelDB = -120.0

// FrameLevel is the loudness of one frame
type FrameLevel struct {
	RMS  float64 // root mean square in sample units
	DBFS float64 // RMS relative to full scale, floored at -120
}

// ComputeFrameLevel measures the RMS level of samples against fullScale.
func ComputeFrameLevel(samples []float64, fullScale float64) FrameLevel {
	if len(samples) == 0 || fullScale <= 0 {
		return FrameLevel{DBFS: minLevelDB}
	}

	rms := math.Sqrt(floats.Dot(samples, samples) / float64(len(samples)))
	db := minLevelDB
	if rms > 0 {
		db = max(20*math.Log10(rms/fullScale), minLevelDB)
	}
	return FrameLevel{RMS: rms, DBFS: db}
}

// Silent reports whether the level is at or below thresholdDB
func (l FrameLevel) Silent(thresholdDB float64) bool {
	return l.DBFS <= thresholdDB
}
