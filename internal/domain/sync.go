package domain

import "time"

// SyncStatus records the outcome of the most recent bank feed sync. Stored
// in settings so it survives restarts.
type SyncStatus struct {
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	Fetched    int        `json:"fetched"`
	Created    int        `json:"created"`
	Matched    int        `json:"matched"`
	Unmatched  int        `json:"unmatched"`
}

// TransactionFilter narrows transaction listings.
type TransactionFilter struct {
	MatchedUserID string
	UnmatchedOnly bool
	Since         *time.Time
	Page          int
	PageSize      int
}
