package common

// ParabolicPeak fits a parabola through three equally spaced samples
// (y1, y2, y3) around a local extremum at the middle sample and returns the
// fractional offset of the vertex from the middle sample, clamped to
// [-0.5, 0.5], together with the interpolated value at the vertex.
//
// When the three points are collinear the offset is 0 and the middle value
// is returned unchanged.
func ParabolicPeak(y1, y2, y3 float64) (offset, value float64) {
	denom := y1 - 2.0*y2 + y3
	if denom == 0 {
		return 0, y2
	}

	offset = 0.5 * (y1 - y3) / denom
	offset = Clamp(offset, -0.5, 0.5)

	value = y2 - 0.25*(y1-y3)*offset
	return offset, value
}
