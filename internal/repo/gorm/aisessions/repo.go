package aisessions

import (
	"context"

	dom "github.com/nuwa-agi/nuwa/internal/ports"
	"gorm.io/gorm"
)

type Repo struct{ db *gorm.DB }

func AutoMigrate(db *gorm.DB) error { return db.AutoMigrate(&Session{}) }
func NewRepo(db *gorm.DB) *Repo     { return &Repo{db: db} }

var _ dom.AISessionsRepository = (*Repo)(nil)

func (r *Repo) Create(ctx context.Context, s *dom.AISession) error {
	m := &Session{
		ID:           s.ID,
		SimulationID: s.SimulationID,
		PrincipalID:  s.PrincipalID,
		Engine:       s.Engine,
		Prompt:       s.Prompt,
		Response:     s.Response,
		Tokens:       s.Usage.Tokens,
		CPU:          s.Usage.CPU,
		RAM:          s.Usage.RAM,
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	s.CreatedAt = m.CreatedAt
	return nil
}

// ListBySimulation returns the newest exchanges first. limit <= 0 means 50.
func (r *Repo) ListBySimulation(ctx context.Context, simulationID string, limit int) ([]*dom.AISession, error) {
	if limit <= 0 {
		limit = 50
	}
	var arr []*Session
	if err := r.db.WithContext(ctx).Where("simulation_id = ?", simulationID).Order("created_at DESC").Limit(limit).Find(&arr).Error; err != nil {
		return nil, err
	}
	out := make([]*dom.AISession, 0, len(arr))
	for _, m := range arr {
		out = append(out, &dom.AISession{
			ID:           m.ID,
			SimulationID: m.SimulationID,
			PrincipalID:  m.PrincipalID,
			Engine:       m.Engine,
			Prompt:       m.Prompt,
			Response:     m.Response,
			Usage:        dom.Usage{Tokens: m.Tokens, CPU: m.CPU, RAM: m.RAM},
			CreatedAt:    m.CreatedAt,
		})
	}
	return out, nil
}
