package models

// HoppingEntry is one visit to a host's channel. Times are epoch milliseconds.
type HoppingEntry struct {
	HostID    string `json:"hostId"`
	JoinTime  int64  `json:"joinTime"`
	LeaveTime *int64 `json:"leaveTime,omitempty"`
	Duration  *int64 `json:"duration,omitempty"`
}

// HoppingState is the persisted channel-hopping record.
// IsBlocked implies BlockStartTime is set.
type HoppingState struct {
	Entries                  []HoppingEntry `json:"entries"`
	IsBlocked                bool           `json:"isBlocked"`
	BlockStartTime           *int64         `json:"blockStartTime"`
	VisitedChannelsInSession []string       `json:"visitedChannelsInSession"`
}

// CooldownState is the observable state of the hopping cooldown
type CooldownState struct {
	Channel           string `json:"currentChannel"`
	IsHoppingDisabled bool   `json:"isHoppingDisabled"`
	RemainingTime     int    `json:"remainingTime"`
}
