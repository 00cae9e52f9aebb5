package models

import "time"

// Role of a call participant as reported in heartbeats
type Role string

const (
	RoleMale   Role = "male"
	RoleFemale Role = "female"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleMale, RoleFemale, RoleAdmin:
		return true
	}
	return false
}

// HeartbeatRequest is the body of POST /api/heartbeat.
// Timestamp is the client's own clock reading in milliseconds and is optional.
type HeartbeatRequest struct {
	ParticipantID string `json:"participant_id"`
	ChannelName   string `json:"channel_name"`
	RoomID        string `json:"room_id"`
	Role          Role   `json:"role"`
	Timestamp     *int64 `json:"timestamp,omitempty"`
}

// HeartbeatRecord is the liveness record of one participant in one channel.
// Records are keyed by (ParticipantID, ChannelName).
type HeartbeatRecord struct {
	ParticipantID string    `json:"participant_id"`
	ChannelName   string    `json:"channel_name"`
	RoomID        string    `json:"room_id"`
	Role          Role      `json:"role"`
	ReportedAt    time.Time `json:"reported_timestamp"`
	LastSeen      time.Time `json:"last_seen_timestamp"`
}

// Key returns the registry key of the record
func (r HeartbeatRecord) Key() string {
	return HeartbeatKey(r.ParticipantID, r.ChannelName)
}

// HeartbeatKey builds the registry key for a participant in a channel
func HeartbeatKey(participantID, channelName string) string {
	return participantID + "|" + channelName
}

// HeartbeatSnapshot is a record augmented with its age at snapshot time
type HeartbeatSnapshot struct {
	HeartbeatRecord
	SecondsSinceLastSeen int64 `json:"seconds_since_last_seen"`
}

// HeartbeatResponse is returned by POST /api/heartbeat
type HeartbeatResponse struct {
	ActiveCount int   `json:"active_count"`
	Timestamp   int64 `json:"timestamp"`
}

// HeartbeatListResponse is returned by GET /api/heartbeat
type HeartbeatListResponse struct {
	ActiveCount int                 `json:"active_count"`
	Heartbeats  []HeartbeatSnapshot `json:"heartbeats"`
	Timestamp   int64               `json:"timestamp"`
}

// PresenceEvent is pushed to websocket subscribers of a channel
type PresenceEvent struct {
	Type          string `json:"type"`
	ChannelName   string `json:"channel_name"`
	RoomID        string `json:"room_id"`
	ParticipantID string `json:"participant_id"`
	Role          Role   `json:"role"`
	Timestamp     int64  `json:"timestamp"`
}

// PresenceEventTimeout is sent when the sweep evicts a participant
const PresenceEventTimeout = "participant_timeout"
