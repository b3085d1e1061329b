package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AgingBucket classifies how long a contract's earliest unpaid installment has
// been overdue.
type AgingBucket string

const (
	AgingBucketCurrent     AgingBucket = "CURRENT"
	AgingBucketDays30      AgingBucket = "DAYS_30"
	AgingBucketDays60      AgingBucket = "DAYS_60"
	AgingBucketDays90      AgingBucket = "DAYS_90"
	AgingBucketDays180     AgingBucket = "DAYS_180"
	AgingBucketDays180Plus AgingBucket = "DAYS_180_PLUS"
)

// BucketFor maps days overdue to a bucket. Buckets are half-open intervals:
// [0,30) is CURRENT, [30,60) is DAYS_30, [60,90) DAYS_60, [90,180) DAYS_90,
// [180,360) DAYS_180 and everything past that DAYS_180_PLUS. Exactly 30 days
// overdue is DAYS_30, not CURRENT.
func BucketFor(daysOverdue int) AgingBucket {
	switch {
	case daysOverdue < 30:
		return AgingBucketCurrent
	case daysOverdue < 60:
		return AgingBucketDays30
	case daysOverdue < 90:
		return AgingBucketDays60
	case daysOverdue < 180:
		return AgingBucketDays90
	case daysOverdue < 360:
		return AgingBucketDays180
	default:
		return AgingBucketDays180Plus
	}
}

// AgingEntry is one row of the aging report
type AgingEntry struct {
	ContractID      int64           `json:"contract_id"`
	ContractNumber  string          `json:"contract_number"`
	CustomerID      string          `json:"customer_id"`
	Bucket          AgingBucket     `json:"bucket"`
	DaysOverdue     int             `json:"days_overdue"`
	EarliestDueDate *time.Time      `json:"earliest_due_date,omitempty"`
	Outstanding     decimal.Decimal `json:"outstanding"`
}
