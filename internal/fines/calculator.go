package fines

import "time"

// LateFee computes the late-return penalty: whole calendar days past the due
// date times the per-day rate. Returning on or before the due date costs
// nothing; hours within a day never count.
func LateFee(dueAt, returnedAt time.Time, perDayRate float64) (float64, error) {
	if perDayRate < 0 {
		return 0, ErrInvalidRate
	}
	days := WholeDaysBetween(dueAt, returnedAt)
	if days < 0 {
		days = 0
	}
	return float64(days) * perDayRate, nil
}

// LossFee validates and returns the flat fee charged for a lost copy.
func LossFee(flatFee float64) (float64, error) {
	if flatFee < 0 {
		return 0, ErrInvalidRate
	}
	return flatFee, nil
}

// WholeDaysBetween returns the number of whole calendar days from a to b,
// negative when b precedes a. Time-of-day is discarded before comparing.
func WholeDaysBetween(a, b time.Time) int {
	return int(dateOf(b).Sub(dateOf(a)).Hours() / 24)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
