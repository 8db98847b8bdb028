package storage

// physical translates a logical index into a backing slot.
//
// Logical index 0 is the oldest valid transition and length-1 is the one
// at head. Negative indices reach into the slack slots behind the oldest
// transition, which hold the lookback frames for the first windows. The
// slot at head+1 is the successor of head.
func physical(head, length, total, i int) int {
	return mod(head-(length-1)+i, total)
}

// mod returns a non-negative remainder
func mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}
