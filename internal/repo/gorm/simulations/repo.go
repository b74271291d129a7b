package simulations

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repo provides GORM-based persistence for simulations and their collaborators.
type Repo struct{ db *gorm.DB }

func AutoMigrate(db *gorm.DB) error { return db.AutoMigrate(&Simulation{}, &Collaborator{}) }
func NewRepo(db *gorm.DB) *Repo     { return &Repo{db: db} }

func (r *Repo) Create(ctx context.Context, s *Simulation) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) Get(ctx context.Context, id string) (*Simulation, error) {
	var s Simulation
	if err := r.db.WithContext(ctx).Preload("Collaborators").First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// Update saves the record and replaces its collaborator set.
func (r *Repo) Update(ctx context.Context, s *Simulation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Simulation{ID: s.ID}).Omit(clause.Associations).Select("name", "description", "domain_type", "parameters", "status", "progress", "team_id", "updated_at").Updates(s)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Where("simulation_id = ?", s.ID).Delete(&Collaborator{}).Error; err != nil {
			return err
		}
		if len(s.Collaborators) == 0 {
			return nil
		}
		for i := range s.Collaborators {
			s.Collaborators[i].SimulationID = s.ID
		}
		return tx.Create(&s.Collaborators).Error
	})
}

func (r *Repo) SetStatus(ctx context.Context, id, status string, progress float64) error {
	res := r.db.WithContext(ctx).Model(&Simulation{}).Where("id = ?", id).Updates(map[string]any{"status": status, "progress": progress})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListVisible returns records owned by, shared with, or in the team of the caller.
func (r *Repo) ListVisible(ctx context.Context, principalID, teamID string) ([]*Simulation, error) {
	shared := r.db.Model(&Collaborator{}).Select("simulation_id").Where("principal_id = ?", principalID)
	q := r.db.WithContext(ctx).Preload("Collaborators").Where("owner_id = ?", principalID).Or("id IN (?)", shared)
	if teamID != "" {
		q = q.Or("team_id = ?", teamID)
	}
	var arr []*Simulation
	if err := q.Order("updated_at DESC").Find(&arr).Error; err != nil {
		return nil, err
	}
	return arr, nil
}
