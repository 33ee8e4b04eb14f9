package entity

import (
	"time"
)

type ChatSession struct {
	Id              string
	OwnerId         string
	Title           string
	HistoryLocation string
	CreatedAt       time.Time
	UpdatedAt       *time.Time
}
