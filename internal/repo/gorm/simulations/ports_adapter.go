package simulations

import (
	"context"
	"errors"
	"fmt"

	dom "github.com/nuwa-agi/nuwa/internal/ports"
	"gorm.io/gorm"
)

// PortRepo adapts *Repo to the ports.SimulationsRepository interface.
type PortRepo struct{ r *Repo }

func NewPortRepo(r *Repo) *PortRepo { return &PortRepo{r: r} }

var _ dom.SimulationsRepository = (*PortRepo)(nil)

func (p *PortRepo) Create(ctx context.Context, s *dom.Simulation) error {
	m, err := fromDomain(s)
	if err != nil {
		return err
	}
	if err := p.r.Create(ctx, m); err != nil {
		return err
	}
	s.CreatedAt, s.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

func (p *PortRepo) Get(ctx context.Context, id string) (*dom.Simulation, error) {
	m, err := p.r.Get(ctx, id)
	if err != nil {
		return nil, mapErr(err, id)
	}
	return toDomain(m), nil
}

func (p *PortRepo) Update(ctx context.Context, s *dom.Simulation) error {
	m, err := fromDomain(s)
	if err != nil {
		return err
	}
	if err := p.r.Update(ctx, m); err != nil {
		return mapErr(err, s.ID)
	}
	s.UpdatedAt = m.UpdatedAt
	return nil
}

func (p *PortRepo) SetStatus(ctx context.Context, id string, status dom.Status, progress float64) error {
	return mapErr(p.r.SetStatus(ctx, id, string(status), progress), id)
}

func (p *PortRepo) ListVisible(ctx context.Context, principalID, teamID string) ([]*dom.Simulation, error) {
	arr, err := p.r.ListVisible(ctx, principalID, teamID)
	if err != nil {
		return nil, err
	}
	out := make([]*dom.Simulation, 0, len(arr))
	for _, m := range arr {
		out = append(out, toDomain(m))
	}
	return out, nil
}

func mapErr(err error, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("simulation %s: %w", id, dom.ErrNotFound)
	}
	return err
}

func fromDomain(s *dom.Simulation) (*Simulation, error) {
	m := &Simulation{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		DomainType:  string(s.DomainType),
		Status:      string(s.Status),
		Progress:    s.Progress,
		OwnerID:     s.OwnerID,
		TeamID:      s.TeamID,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
	if err := m.SetParams(s.Parameters); err != nil {
		return nil, fmt.Errorf("%w: parameters: %v", dom.ErrInvalidInput, err)
	}
	for _, c := range s.Collaborators {
		m.Collaborators = append(m.Collaborators, Collaborator{SimulationID: s.ID, PrincipalID: c.PrincipalID, Role: string(c.Role)})
	}
	return m, nil
}

func toDomain(m *Simulation) *dom.Simulation {
	s := &dom.Simulation{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		DomainType:  dom.DomainType(m.DomainType),
		Parameters:  dom.Params(m.GetParams()),
		Status:      dom.Status(m.Status),
		Progress:    m.Progress,
		OwnerID:     m.OwnerID,
		TeamID:      m.TeamID,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	for _, c := range m.Collaborators {
		s.Collaborators = append(s.Collaborators, dom.Collaborator{PrincipalID: c.PrincipalID, Role: dom.CollaboratorRole(c.Role)})
	}
	return s
}
