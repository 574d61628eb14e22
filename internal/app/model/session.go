package model

import "time"

// Session is the pseudonymous visitor identity scoped to one source. The id
// is derived deterministically from salted hashing, so creation is
// create-if-absent and concurrent first sightings are expected to collide.
type Session struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	WebsiteID  string    `json:"website_id" gorm:"size:36;not null;index"`
	Browser    string    `json:"browser,omitempty" gorm:"size:50"`
	OS         string    `json:"os,omitempty" gorm:"size:50"`
	Device     string    `json:"device,omitempty" gorm:"size:50"`
	Screen     string    `json:"screen,omitempty" gorm:"size:11"`
	Language   string    `json:"language,omitempty" gorm:"size:35"`
	Country    string    `json:"country,omitempty" gorm:"size:50"`
	Region     string    `json:"region,omitempty" gorm:"size:50"`
	City       string    `json:"city,omitempty" gorm:"size:50"`
	DistinctID string    `json:"distinct_id,omitempty" gorm:"size:50"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Session) TableName() string { return "sessions" }

// SessionDataRecord is one key/value pair attached to a session by an
// identify call. Re-identifying with the same key overwrites the value.
type SessionDataRecord struct {
	SessionID  string    `json:"session_id" gorm:"primaryKey;size:36"`
	DataKey    string    `json:"data_key" gorm:"primaryKey;size:500"`
	DataValue  string    `json:"data_value" gorm:"type:jsonb"`
	DistinctID string    `json:"distinct_id,omitempty" gorm:"size:50"`
	CreatedAt  time.Time `json:"created_at"`
}

func (SessionDataRecord) TableName() string { return "session_data" }
