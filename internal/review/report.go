package review

// Report is the full outcome of one review run, ready for rendering.
type Report struct {
	Tool      string     `json:"tool"`
	Version   string     `json:"version"`
	Mode      string     `json:"mode"`
	Target    string     `json:"target,omitempty"`
	Repo      string     `json:"repo,omitempty"`
	Branch    string     `json:"branch,omitempty"`
	FilesSeen int        `json:"filesSeen"`
	Result    PlanResult `json:"result"`
	ElapsedMs int64      `json:"elapsedMs"`
}

// Verdict returns the report's aggregate verdict as a display string.
func (r *Report) Verdict() string {
	if r.Result.Approve {
		return "APPROVE"
	}
	return "REQUEST CHANGES"
}
