package simulations

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Simulation is the DB model for a simulation record.
type Simulation struct {
	ID          string `gorm:"primaryKey;size:36"`
	Name        string `gorm:"size:200;not null"`
	Description string `gorm:"type:text"`
	DomainType  string `gorm:"size:32;index"`
	Parameters  datatypes.JSON
	Status      string  `gorm:"size:16;default:idle"`
	Progress    float64 `gorm:"default:0"`
	OwnerID     string  `gorm:"size:36;index;not null"`
	TeamID      string  `gorm:"size:64;index"`
	// Collaborators never include implicit grants; ownership lives in OwnerID.
	Collaborators []Collaborator `gorm:"foreignKey:SimulationID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Collaborator grants a principal editor or viewer on one simulation.
type Collaborator struct {
	SimulationID string `gorm:"primaryKey;size:36"`
	PrincipalID  string `gorm:"primaryKey;size:36;index"`
	Role         string `gorm:"size:16;not null"`
}

func (Collaborator) TableName() string { return "simulation_collaborators" }

// Helpers to encode/decode Simulation.Parameters
func (s *Simulation) GetParams() map[string]any {
	out := map[string]any{}
	if len(s.Parameters) == 0 {
		return out
	}
	_ = json.Unmarshal(s.Parameters, &out)
	return out
}

func (s *Simulation) SetParams(p map[string]any) error {
	if p == nil {
		p = map[string]any{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	s.Parameters = b
	return nil
}
