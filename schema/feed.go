package schema

// FeedPage is one response of the job log feed. Records[i] sits at stream
// position Offset+i.
type FeedPage struct {
	JobID          JobID       `json:"job_id"`
	Offset         int         `json:"offset"`
	Records        []RawRecord `json:"records"`
	JobState       JobState    `json:"job_state,omitempty"`
	Status         FetchStatus `json:"status,omitempty"`
	FailureMessage string      `json:"failure_message,omitempty"`
	Trimmed        bool        `json:"trimmed,omitempty"`
	Done           bool        `json:"done,omitempty"`
}

// Next returns the position following the last record of the page.
func (p FeedPage) Next() int {
	return p.Offset + len(p.Records)
}
