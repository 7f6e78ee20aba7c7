package timezone

import "time"

// OffsetShift returns how far the zone offset at target differs from the
// offset at now. It is positive when target lies in daylight saving time and
// now does not (entering DST), negative when leaving it, and zero when both
// instants share the same offset.
func OffsetShift(now, target time.Time, tz *time.Location) time.Duration {
	if tz == nil {
		tz = UTC
	}
	_, nowOffset := now.In(tz).Zone()
	_, targetOffset := target.In(tz).Zone()
	return time.Duration(targetOffset-nowOffset) * time.Second
}

// NormalizeDST corrects an instant that was computed using the observer's
// current clock offset when the target falls on the other side of a daylight
// saving transition. The instant moves by exactly the transition's offset:
// forward when entering DST between now and target, backward when leaving it.
//
// The correction is applied once, after all absolute and relative clauses
// have been combined.
func NormalizeDST(now, target time.Time, tz *time.Location) time.Time {
	shift := OffsetShift(now, target, tz)
	if shift == 0 {
		return target
	}
	return target.Add(shift).In(target.Location())
}

// IsDST reports whether t observes daylight saving time in tz.
func IsDST(t time.Time, tz *time.Location) bool {
	if tz == nil {
		tz = UTC
	}
	return t.In(tz).IsDST()
}
