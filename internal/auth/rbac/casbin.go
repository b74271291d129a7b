package rbac

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// Verb names an operation gated by a capability.
type Verb string

const (
	VerbRead   Verb = "read"
	VerbQuery  Verb = "query"
	VerbUpdate Verb = "update"
	VerbStart  Verb = "start"
	VerbPause  Verb = "pause"
	VerbResume Verb = "resume"
	VerbStop   Verb = "stop"
	VerbShare  Verb = "share"
)

const objectSimulation = "simulation"

const policyModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// Grants maps each capability to the verbs it unlocks directly. Higher
// capabilities inherit the verbs of lower ones.
var Grants = map[Capability][]Verb{
	Viewer: {VerbRead, VerbQuery},
	Editor: {VerbUpdate, VerbStart, VerbPause, VerbResume, VerbStop},
	Owner:  {VerbShare},
}

// Policy answers whether a capability may perform a verb.
type Policy struct {
	enforcer *casbin.SyncedEnforcer
}

// NewPolicy builds the in-memory enforcer with owner > editor > viewer inheritance.
func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return nil, fmt.Errorf("rbac model: %w", err)
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("rbac enforcer: %w", err)
	}
	var rules [][]string
	for c, verbs := range Grants {
		for _, v := range verbs {
			rules = append(rules, []string{string(c), objectSimulation, string(v)})
		}
	}
	if _, err := e.AddPolicies(rules); err != nil {
		return nil, err
	}
	if _, err := e.AddGroupingPolicy(string(Owner), string(Editor)); err != nil {
		return nil, err
	}
	if _, err := e.AddGroupingPolicy(string(Editor), string(Viewer)); err != nil {
		return nil, err
	}
	return &Policy{enforcer: e}, nil
}

// MustNewPolicy is NewPolicy for wiring code that cannot recover.
func MustNewPolicy() *Policy {
	p, err := NewPolicy()
	if err != nil {
		panic(err)
	}
	return p
}

// Allows reports whether c may perform verb. Enforcement errors deny.
func (p *Policy) Allows(c Capability, verb Verb) bool {
	if c == None || c == "" {
		return false
	}
	ok, err := p.enforcer.Enforce(string(c), objectSimulation, string(verb))
	return err == nil && ok
}
