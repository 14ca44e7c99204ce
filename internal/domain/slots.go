package domain

// AvailableSlots returns the start minutes at which a booking of length
// durationMinutes fits entirely inside one of the working intervals without
// overlapping any busy interval. Candidates are walked from each working
// interval's start in stepMinutes increments; starts before notBefore are
// skipped. A zero notBefore disables the cutoff.
//
// Intervals are half-open throughout: a slot ending exactly where a busy
// interval starts is free.
func AvailableSlots(working []Interval, busy []Interval, stepMinutes, durationMinutes, notBefore int) []int {
	if stepMinutes <= 0 || durationMinutes <= 0 {
		return nil
	}

	var out []int
	for _, w := range working {
		for t := w.Start; t+durationMinutes <= w.End; t += stepMinutes {
			if t < notBefore {
				continue
			}
			candidate := Interval{Start: t, End: t + durationMinutes}
			if overlapsAny(candidate, busy) {
				continue
			}
			out = append(out, t)
		}
	}
	return out
}

func overlapsAny(iv Interval, busy []Interval) bool {
	for _, b := range busy {
		if iv.Overlaps(b) {
			return true
		}
	}
	return false
}
