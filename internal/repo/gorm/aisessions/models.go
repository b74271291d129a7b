package aisessions

import "time"

// Session logs one prompt/response exchange against a simulation.
type Session struct {
	ID           string `gorm:"primaryKey;size:36"`
	SimulationID string `gorm:"size:36;index;not null"`
	PrincipalID  string `gorm:"size:36;index"`
	Engine       string `gorm:"size:64"`
	Prompt       string `gorm:"type:text"`
	Response     string `gorm:"type:text"`
	Tokens       int64
	CPU          float64
	RAM          float64
	CreatedAt    time.Time
}

func (Session) TableName() string { return "ai_sessions" }
