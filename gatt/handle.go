package gatt

// A handleRange is the part of [start, end] a discovery stage has not
// covered yet. Both bounds are inclusive.
type handleRange struct {
	start, end uint16
}

func (r handleRange) empty() bool { return r.start == 0 || r.start > r.end }

// advance moves start past last, the highest handle a response reported.
// It reports false when the range is exhausted or the peer did not move
// forward.
func (r *handleRange) advance(last uint16) bool {
	if last < r.start || last >= r.end {
		return false
	}
	r.start = last + 1
	return true
}
