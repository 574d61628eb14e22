package model

import "time"

// WebsiteEvent is one tracked hit, written exactly once per request. The
// session snapshot is embedded so the stream sink can store events without a
// companion sessions table.
type WebsiteEvent struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	WebsiteID string    `json:"website_id" gorm:"size:36;not null;index"`
	SessionID string    `json:"session_id" gorm:"size:36;not null;index"`
	VisitID   string    `json:"visit_id" gorm:"size:36;not null"`
	EventType string    `json:"event_type" gorm:"size:16;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;index"`

	Hostname  string `json:"hostname,omitempty" gorm:"size:100"`
	PageTitle string `json:"page_title,omitempty" gorm:"size:500"`
	URLPath   string `json:"url_path,omitempty" gorm:"size:500"`
	URLQuery  string `json:"url_query,omitempty" gorm:"size:500"`

	ReferrerPath   string `json:"referrer_path,omitempty" gorm:"size:500"`
	ReferrerQuery  string `json:"referrer_query,omitempty" gorm:"size:500"`
	ReferrerDomain string `json:"referrer_domain,omitempty" gorm:"size:500"`

	UTMSource   string `json:"utm_source,omitempty" gorm:"size:200"`
	UTMMedium   string `json:"utm_medium,omitempty" gorm:"size:200"`
	UTMCampaign string `json:"utm_campaign,omitempty" gorm:"size:200"`
	UTMContent  string `json:"utm_content,omitempty" gorm:"size:200"`
	UTMTerm     string `json:"utm_term,omitempty" gorm:"size:200"`

	Gclid   string `json:"gclid,omitempty" gorm:"size:200"`
	Fbclid  string `json:"fbclid,omitempty" gorm:"size:200"`
	Msclkid string `json:"msclkid,omitempty" gorm:"size:200"`
	Ttclid  string `json:"ttclid,omitempty" gorm:"size:200"`
	LiFatID string `json:"li_fat_id,omitempty" gorm:"column:li_fat_id;size:200"`
	Twclid  string `json:"twclid,omitempty" gorm:"size:200"`

	EventName string `json:"event_name,omitempty" gorm:"size:50"`
	EventData string `json:"event_data,omitempty" gorm:"type:jsonb"`
	Tag       string `json:"tag,omitempty" gorm:"size:50"`

	// Session snapshot
	Browser    string `json:"browser,omitempty" gorm:"size:50"`
	OS         string `json:"os,omitempty" gorm:"size:50"`
	Device     string `json:"device,omitempty" gorm:"size:50"`
	Screen     string `json:"screen,omitempty" gorm:"size:11"`
	Language   string `json:"language,omitempty" gorm:"size:35"`
	Country    string `json:"country,omitempty" gorm:"size:50"`
	Region     string `json:"region,omitempty" gorm:"size:50"`
	City       string `json:"city,omitempty" gorm:"size:50"`
	DistinctID string `json:"distinct_id,omitempty" gorm:"size:50"`
}

func (WebsiteEvent) TableName() string { return "events" }

const (
	HitStreamName     = "HITS"
	HitStreamSubject  = "hits.accepted"
	HitConsumerName   = "hit-archiver"
	HitStreamMaxBytes = 1024 * 1024 * 256 // 256MB
)
