package broadcast

import (
	"fmt"
	"strings"
)

// Kind scopes a channel to a team, a simulation or a single principal.
type Kind string

const (
	KindTeam       Kind = "team"
	KindSimulation Kind = "simulation"
	KindUser       Kind = "user"
)

// Channel is a logical broadcast scope that connections opt into.
type Channel struct {
	Kind Kind
	Key  string
}

func TeamChannel(teamID string) Channel      { return Channel{Kind: KindTeam, Key: teamID} }
func SimulationChannel(simID string) Channel { return Channel{Kind: KindSimulation, Key: simID} }
func UserChannel(principalID string) Channel { return Channel{Kind: KindUser, Key: principalID} }

func (c Channel) String() string { return string(c.Kind) + ":" + c.Key }

func (c Channel) Valid() bool {
	switch c.Kind {
	case KindTeam, KindSimulation, KindUser:
		return c.Key != ""
	}
	return false
}

// ParseChannel is the inverse of Channel.String.
func ParseChannel(s string) (Channel, error) {
	kind, key, ok := strings.Cut(s, ":")
	c := Channel{Kind: Kind(kind), Key: key}
	if !ok || !c.Valid() {
		return Channel{}, fmt.Errorf("bad channel %q", s)
	}
	return c, nil
}
