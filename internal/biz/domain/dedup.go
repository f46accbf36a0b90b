package domain

import "time"

// DedupRecord is the audit entry for one message removed by event deduplication.
// Records are append-only.
type DedupRecord struct {
	ID             int64
	KeptContent    string
	KeptSource     string
	RemovedContent string
	RemovedSource  string
	Reason         string
	CreatedAt      time.Time
}

// NewDedupRecord builds a record from the kept and removed messages
func NewDedupRecord(kept, removed Message, reason string) DedupRecord {
	return DedupRecord{
		KeptContent:    kept.Content,
		KeptSource:     kept.Source,
		RemovedContent: removed.Content,
		RemovedSource:  removed.Source,
		Reason:         reason,
	}
}

// Summary is a persisted daily summary
type Summary struct {
	ID         int64
	Date       string // YYYY-MM-DD
	Content    string
	Categories map[string]int
	MsgCount   int
	CreatedAt  time.Time
}
