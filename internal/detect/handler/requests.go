package handler

// ProgressResponse reports the running estimate for the active submission.
// Progress is a percentage in [0, 100]; 0 means no submission is in flight.
type ProgressResponse struct {
	Progress float64 `json:"progress"`
}
