package lifecycle

import (
	"time"

	"github.com/nuwa-agi/nuwa/internal/auth/rbac"
	"github.com/nuwa-agi/nuwa/internal/engine"
	"github.com/nuwa-agi/nuwa/internal/ports"
)

// SimulationView is the wire shape of a simulation record.
type SimulationView struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Description   string               `json:"description"`
	DomainType    ports.DomainType     `json:"domainType"`
	Parameters    ports.Params         `json:"parameters"`
	Status        ports.Status         `json:"status"`
	Progress      float64              `json:"progress"`
	OwnerID       string               `json:"ownerId"`
	TeamID        string               `json:"teamId"`
	Collaborators []ports.Collaborator `json:"collaborators"`
	Capability    rbac.Capability      `json:"capability,omitempty"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

func ViewOf(s *ports.Simulation, c rbac.Capability) SimulationView {
	collabs := s.Collaborators
	if collabs == nil {
		collabs = []ports.Collaborator{}
	}
	params := s.Parameters
	if params == nil {
		params = ports.Params{}
	}
	return SimulationView{
		ID:            s.ID,
		Name:          s.Name,
		Description:   s.Description,
		DomainType:    s.DomainType,
		Parameters:    params,
		Status:        s.Status,
		Progress:      s.Progress,
		OwnerID:       s.OwnerID,
		TeamID:        s.TeamID,
		Collaborators: collabs,
		Capability:    c,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

// Transition is the payload of every lifecycle event.
type Transition struct {
	SimulationID string          `json:"simulationId"`
	Status       ports.Status    `json:"status"`
	Progress     float64         `json:"progress"`
	Metrics      *engine.Metrics `json:"metrics,omitempty"`
	Actor        string          `json:"actor,omitempty"`
	At           time.Time       `json:"at"`
}

func transitionOf(st engine.State, actor string, at time.Time) Transition {
	m := st.Metrics
	return Transition{SimulationID: st.ID, Status: st.Status, Progress: st.Progress, Metrics: &m, Actor: actor, At: at}
}
