package esmutils

import "math"

// KwToW converts kW to whole W. Negative values become 0.
func KwToW(kw float64) uint32 {
	if kw < 0 {
		return 0
	}
	return uint32(math.Round(kw * 1000))
}
