package model

import (
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Setting{},
	&HealthSample{},
}

// Setting is one persisted key/value row.
type Setting struct {
	Name      string         `json:"name" gorm:"primaryKey;size:64"`
	Value     datatypes.JSON `json:"value" gorm:"not null"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (*Setting) TableName() string {
	return "settings"
}

// HealthSample is one periodic reading of the companion's state
type HealthSample struct {
	ID              uint      `json:"id" gorm:"primarykey;autoIncrement"`
	Time            time.Time `json:"time" gorm:"index:idx_health_time"`
	Status          string    `json:"status" gorm:"size:16"`
	Reason          string    `json:"reason" gorm:"size:255"`
	ClientID        string    `json:"clientId" gorm:"size:64"`
	BrokerHost      string    `json:"brokerHost" gorm:"size:255"`
	BrokerPort      int       `json:"brokerPort"`
	DetectionStatus string    `json:"detectionStatus" gorm:"size:255"`
	Frames          uint64    `json:"frames"`
	ImageWidth      int       `json:"imageWidth"`
	ImageHeight     int       `json:"imageHeight"`
	Zones           int       `json:"zones"`
	Editing         bool      `json:"editing"`
}

func (*HealthSample) TableName() string {
	return "health_samples"
}
