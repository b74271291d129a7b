package ports

import (
	"context"
	"time"
)

// Usage is reported per AI exchange. Tokens come from the provider; CPU and
// RAM are synthetic figures.
type Usage struct {
	Tokens int64   `json:"tokens"`
	CPU    float64 `json:"cpu"`
	RAM    float64 `json:"ram"`
}

type AISession struct {
	ID           string
	SimulationID string
	PrincipalID  string
	Engine       string
	Prompt       string
	Response     string
	Usage        Usage
	CreatedAt    time.Time
}

type AISessionsRepository interface {
	Create(ctx context.Context, s *AISession) error
	ListBySimulation(ctx context.Context, simulationID string, limit int) ([]*AISession, error)
}
