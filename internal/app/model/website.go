package model

import "time"

// Website is a registered tracking target. The ingestion core only reads
// these rows; registration is handled elsewhere.
type Website struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Domain    string    `json:"domain" gorm:"size:500"`
	Name      string    `json:"name" gorm:"size:100"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (Website) TableName() string { return "websites" }
