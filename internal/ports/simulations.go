package ports

import (
	"context"
	"encoding/json"
	"strconv"
	"time"
)

// Status is the lifecycle status of a simulation.
//
// StatusIdle is the durable mirror of "no engine entry": a freshly created
// simulation, or one that was stopped.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is possible without a restart.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

// DomainType selects the parameter schema and default metric seed.
type DomainType string

const (
	DomainCity     DomainType = "city"
	DomainClimate  DomainType = "climate"
	DomainRobotics DomainType = "robotics"
	DomainSpace    DomainType = "space"
	DomainFinance  DomainType = "finance"
)

// DomainTypes lists every supported domain in display order.
var DomainTypes = []DomainType{DomainCity, DomainClimate, DomainRobotics, DomainSpace, DomainFinance}

func (d DomainType) Valid() bool {
	for _, v := range DomainTypes {
		if v == d {
			return true
		}
	}
	return false
}

// CollaboratorRole is the role granted to a non-owner on one simulation.
type CollaboratorRole string

const (
	CollaboratorEditor CollaboratorRole = "editor"
	CollaboratorViewer CollaboratorRole = "viewer"
)

func (r CollaboratorRole) Valid() bool { return r == CollaboratorEditor || r == CollaboratorViewer }

type Collaborator struct {
	PrincipalID string           `json:"principalId"`
	Role        CollaboratorRole `json:"role"`
}

// Params is the opaque structured payload attached to a simulation.
type Params map[string]any

// Float returns the numeric value stored under key. Numbers decoded from JSON,
// native Go numbers and numeric strings are accepted.
func (p Params) Float(key string) (float64, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// Merge returns a copy of p with every key of other applied on top.
func (p Params) Merge(other Params) Params {
	out := make(Params, len(p)+len(other))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Simulation is the durable record. The owner is implicitly owner-equivalent
// whether or not it appears in Collaborators.
type Simulation struct {
	ID            string
	Name          string
	Description   string
	DomainType    DomainType
	Parameters    Params
	Status        Status
	Progress      float64
	OwnerID       string
	TeamID        string
	Collaborators []Collaborator
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Collaborator returns the entry for principalID, if any.
func (s *Simulation) Collaborator(principalID string) (Collaborator, bool) {
	for _, c := range s.Collaborators {
		if c.PrincipalID == principalID {
			return c, true
		}
	}
	return Collaborator{}, false
}

// SetCollaborator adds principalID or replaces its role.
func (s *Simulation) SetCollaborator(principalID string, role CollaboratorRole) {
	for i := range s.Collaborators {
		if s.Collaborators[i].PrincipalID == principalID {
			s.Collaborators[i].Role = role
			return
		}
	}
	s.Collaborators = append(s.Collaborators, Collaborator{PrincipalID: principalID, Role: role})
}

// RemoveCollaborator drops principalID and reports whether it was present.
func (s *Simulation) RemoveCollaborator(principalID string) bool {
	for i := range s.Collaborators {
		if s.Collaborators[i].PrincipalID == principalID {
			s.Collaborators = append(s.Collaborators[:i], s.Collaborators[i+1:]...)
			return true
		}
	}
	return false
}

// SimulationsRepository is the persistence collaborator for simulation records.
// Get returns ErrNotFound when the id is unknown.
type SimulationsRepository interface {
	Create(ctx context.Context, s *Simulation) error
	Get(ctx context.Context, id string) (*Simulation, error)
	Update(ctx context.Context, s *Simulation) error
	SetStatus(ctx context.Context, id string, status Status, progress float64) error
	// ListVisible returns records owned by principalID, shared with it, or
	// belonging to teamID. Callers still filter through the access resolver.
	ListVisible(ctx context.Context, principalID, teamID string) ([]*Simulation, error)
}
