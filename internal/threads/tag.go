package threads

// Tag is the minimal metadata persisted on a platform thread so a later
// run can recover which finding the thread represents. How the tag rides
// on the thread is the store's concern; reconciliation only reads these
// fields.
type Tag struct {
	Fingerprint string `json:"fingerprint"`
	Path        string `json:"path,omitempty"`
	Line        int    `json:"line,omitempty"`
	FindingID   string `json:"findingId,omitempty"`
	Iteration   int    `json:"iteration"`
	// Ledger marks the single machine-readable ledger thread, which is
	// exempt from auto-resolution.
	Ledger bool `json:"ledger,omitempty"`
}
