package engine

import (
	"time"

	"github.com/nuwa-agi/nuwa/internal/ports"
)

// Metrics are the stand-in simulation quantities advanced on every tick.
type Metrics struct {
	Population float64 `json:"population"`
	Energy     float64 `json:"energy"`
	Oxygen     float64 `json:"oxygen"`
	Food       float64 `json:"food"`
}

// DefaultMetrics seeds any metric missing from the start parameters.
var DefaultMetrics = Metrics{Population: 1000, Energy: 100, Oxygen: 100, Food: 100}

// State is a snapshot of one simulation held by the engine.
type State struct {
	ID        string       `json:"simulationId"`
	Status    ports.Status `json:"status"`
	Progress  float64      `json:"progress"`
	Metrics   Metrics      `json:"metrics"`
	Ticks     uint64       `json:"ticks"`
	StartedAt time.Time    `json:"startedAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func seedMetrics(params ports.Params) Metrics {
	m := DefaultMetrics
	if v, ok := params.Float("population"); ok && v >= 0 {
		m.Population = v
	}
	if v, ok := params.Float("energy"); ok && v >= 0 {
		m.Energy = v
	}
	if v, ok := params.Float("oxygen"); ok && v >= 0 {
		m.Oxygen = v
	}
	if v, ok := params.Float("food"); ok && v >= 0 {
		m.Food = v
	}
	return m
}

// drift is a half-open perturbation range [lo, hi).
type drift struct{ lo, hi float64 }

func (d drift) sample(r float64) float64 { return d.lo + r*(d.hi-d.lo) }

var (
	populationDrift = drift{-1, 3}
	energyDrift     = drift{-1.2, 0.8}
	oxygenDrift     = drift{-1.1, 0.9}
	foodDrift       = drift{-1.3, 0.7}
)

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
