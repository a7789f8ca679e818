package handler

import (
	"encoding/json"
	"time"

	"github.com/sabbirahammad/currency/internal/detect"
	"github.com/sabbirahammad/currency/internal/history"
)

// ViewResponse is the HTTP form of a history snapshot.
type ViewResponse struct {
	Records   []RecordResponse `json:"records"`
	Stale     bool             `json:"stale"`
	UpdatedAt time.Time        `json:"updatedAt"`
	SyncError string           `json:"syncError,omitempty"`
}

// RecordResponse is one history entry. ID is empty for records whose stored
// document carried an unparsable identifier.
type RecordResponse struct {
	ID               string        `json:"id"`
	Timestamp        time.Time     `json:"timestamp"`
	DisplayTimestamp string        `json:"displayTimestamp"`
	Result           detect.Result `json:"result"`
}

// FromView converts a view snapshot to its HTTP response. syncErr is only
// attached when the view is stale; a healthy view carries no error text.
func FromView(view history.View, syncErr error) *ViewResponse {
	resp := &ViewResponse{
		Records:   make([]RecordResponse, 0, len(view.Records)),
		Stale:     view.Stale,
		UpdatedAt: view.UpdatedAt,
	}

	if view.Stale && syncErr != nil {
		resp.SyncError = syncErr.Error()
	}

	for _, rec := range view.Records {
		out := RecordResponse{
			Timestamp:        rec.RawTimestamp,
			DisplayTimestamp: rec.DisplayTimestamp,
			Result:           rec.Result,
		}
		if !rec.ID.IsNil() {
			out.ID = rec.ID.String()
		}
		resp.Records = append(resp.Records, out)
	}

	return resp
}

func encodeView(resp *ViewResponse) ([]byte, error) {
	return json.Marshal(resp)
}
