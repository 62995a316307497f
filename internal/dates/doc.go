// Package dates implements calendar-day arithmetic and the edit window.
//
// A Date is a local calendar day with no time or zone component. All
// "today" and "yesterday" computations take the wall-clock time as an
// argument (or read it from a Clock) so that the edit-window rule is
// evaluated fresh at call time:
//
//	editable(d) = d == today
//	           || (d == yesterday && hour(now) < DeadlineHour)
//
// The hour comparison uses the hour component of the time value as given.
// No timezone conversion is performed beyond what the caller's clock
// already applied.
package dates
