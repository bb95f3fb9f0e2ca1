package ledger

import "time"

// AgingBucket groups overdue invoices by how late they are.
type AgingBucket string

const (
	BucketCurrent AgingBucket = "current"
	Bucket1To30   AgingBucket = "1-30"
	Bucket31To60  AgingBucket = "31-60"
	Bucket61To90  AgingBucket = "61-90"
	BucketOver90  AgingBucket = "90+"
)

// Buckets in display order.
var Buckets = []AgingBucket{BucketCurrent, Bucket1To30, Bucket31To60, Bucket61To90, BucketOver90}

// DaysOverdue counts whole calendar days (UTC) between the due date and now.
// It is zero on and before the due date.
func DaysOverdue(due, now time.Time) int {
	d := truncateDay(due)
	n := truncateDay(now)
	if !n.After(d) {
		return 0
	}
	return int(n.Sub(d).Hours() / 24)
}

// Bucket classifies a days-overdue count.
func Bucket(days int) AgingBucket {
	switch {
	case days <= 0:
		return BucketCurrent
	case days <= 30:
		return Bucket1To30
	case days <= 60:
		return Bucket31To60
	case days <= 90:
		return Bucket61To90
	default:
		return BucketOver90
	}
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
