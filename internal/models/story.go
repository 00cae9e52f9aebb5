package models

// TrackStoryRequest mounts (or re-evaluates) an expiry watch for a story.
// Slot identifies the display position; it defaults to HistoryID.
// DateHistory is the creation time in RFC 3339.
type TrackStoryRequest struct {
	Slot        string `json:"slot"`
	HistoryID   string `json:"history_id"`
	DateHistory string `json:"date_history"`
}

// StoryStatus reports the state of a story watch
type StoryStatus struct {
	Slot      string `json:"slot"`
	HistoryID string `json:"history_id"`
	Expired   bool   `json:"expired"`
	Deleted   bool   `json:"deleted"`
}
