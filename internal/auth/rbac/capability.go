package rbac

import "github.com/nuwa-agi/nuwa/internal/ports"

// Capability is the effective permission a principal holds on one simulation.
// It is derived on every check and never stored.
type Capability string

const (
	None   Capability = "none"
	Viewer Capability = "viewer"
	Editor Capability = "editor"
	Owner  Capability = "owner"
)

// Resolve derives the capability of id over sim. Rules apply in order:
// ownership, editor grant, viewer grant or team affiliation, otherwise none.
func Resolve(id ports.Identity, sim *ports.Simulation) Capability {
	if sim == nil || id.PrincipalID == "" {
		return None
	}
	if id.PrincipalID == sim.OwnerID {
		return Owner
	}
	if c, ok := sim.Collaborator(id.PrincipalID); ok {
		switch c.Role {
		case ports.CollaboratorEditor:
			return Editor
		case ports.CollaboratorViewer:
			return Viewer
		}
	}
	if id.TeamID != "" && id.TeamID == sim.TeamID {
		return Viewer
	}
	return None
}

func CanView(c Capability) bool { return c == Viewer || c == Editor || c == Owner }

func CanEdit(c Capability) bool { return c == Editor || c == Owner }
