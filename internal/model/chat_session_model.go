package model

import (
	"time"
)

// ChatSession is the per-session metadata record: a pointer to the durable
// history blob plus write-once title and optional owner.
type ChatSession struct {
	Id              string `gorm:"type:text;primaryKey"`
	OwnerId         string `gorm:"type:text;index"`
	Title           string
	HistoryLocation string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}
