package models

// RoomStatusWaiting is the upstream status of a room whose host is waiting for a caller.
const RoomStatusWaiting = "waiting"

// RoomStatusInCall is the upstream status of a room with a call in progress.
const RoomStatusInCall = "in_call"

// Room is the upstream backend's view of a call channel.
// It is consumed read-only by the availability gate.
type Room struct {
	// ID is the upstream room identifier
	ID int64 `json:"id"`

	// HostID is the user hosting the channel
	HostID string `json:"host_id"`

	// UserID is the owner of the room record
	UserID string `json:"user_id"`

	// AnotherUserID is set once a caller has joined; nil while the room is free
	AnotherUserID *string `json:"another_user_id"`

	// ChannelName is the RTC channel the room is mapped to
	ChannelName string `json:"channel_name,omitempty"`

	// Status is "waiting", "in_call" or any other upstream state
	Status string `json:"status"`
}

// RoomFilter narrows the upstream room listing
type RoomFilter struct {
	Status string
	HostID string
}

// Availability is the result of checking whether a channel can be joined
type Availability struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason"`
}

// CloseChannelRequest asks the upstream backend to close a channel whose host disappeared
type CloseChannelRequest struct {
	RoomID      string `json:"room_id"`
	ChannelName string `json:"channel_name"`
	HostID      string `json:"host_id"`
	Reason      string `json:"reason"`
}
