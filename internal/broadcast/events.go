package broadcast

// Server to client event names.
const (
	EventSimulationCreated   = "simulation-created"
	EventSimulationUpdated   = "simulation-updated"
	EventSimulationStarted   = "simulation-started"
	EventSimulationPaused    = "simulation-paused"
	EventSimulationResumed   = "simulation-resumed"
	EventSimulationStopped   = "simulation-stopped"
	EventSimulationProgress  = "simulation-progress"
	EventSimulationCompleted = "simulation-completed"
	EventAIResponse          = "ai-response"
	EventSubscriptionUpdated = "subscription-updated"
	EventCollaboratorRemoved = "collaborator-removed"
	EventJoined              = "joined"
	EventLeft                = "left"
	EventError               = "error"
)

// CollaboratorRemoved is the payload of EventCollaboratorRemoved. Gateways drop
// the revoked principal's sockets from the simulation channel when they see it.
type CollaboratorRemoved struct {
	SimulationID string `json:"simulationId"`
	PrincipalID  string `json:"principalId"`
}
