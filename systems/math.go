package systems

import "math"

// clampFloat clamps a float32 value between min and max.
func clampFloat(v, minVal, maxVal float32) float32 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// normalizeHeading wraps a heading to [0, 2*Pi).
// Turns are bounded per tick so one correction is enough.
func normalizeHeading(h float32) float32 {
	const twoPi = 2 * math.Pi
	if h < 0 {
		h += twoPi
	} else if h >= twoPi {
		h -= twoPi
	}
	return h
}

// wrap returns a in [0,b). Rounding can land exactly on b, which maps to 0.
func wrap(a, b float32) float32 {
	a = float32(math.Mod(float64(a), float64(b)))
	if a < 0 {
		a += b
	}
	if a >= b {
		a = 0
	}
	return a
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func boolInput(b bool) float32 {
	if b {
		return 1
	}
	return 0
}
