package validation

import (
	"embed"
	"fmt"
	"strings"

	"github.com/nuwa-agi/nuwa/internal/ports"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Params validates simulation parameters against the shared metric schema and
// the schema of their domain.
type Params struct {
	common  *gojsonschema.Schema
	domains map[ports.DomainType]*gojsonschema.Schema
}

func NewParams() (*Params, error) {
	common, err := load("common")
	if err != nil {
		return nil, err
	}
	p := &Params{common: common, domains: map[ports.DomainType]*gojsonschema.Schema{}}
	for _, d := range ports.DomainTypes {
		s, err := load(string(d))
		if err != nil {
			return nil, err
		}
		p.domains[d] = s
	}
	return p, nil
}

func MustNewParams() *Params {
	p, err := NewParams()
	if err != nil {
		panic(err)
	}
	return p
}

func load(name string) (*gojsonschema.Schema, error) {
	data, err := schemaFS.ReadFile("schemas/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	return s, nil
}

// Validate returns an ErrInvalidInput-wrapped error listing at most five
// violations. A nil params map is valid.
func (p *Params) Validate(domain ports.DomainType, params ports.Params) error {
	if !domain.Valid() {
		return fmt.Errorf("%w: unknown domain type %q", ports.ErrInvalidInput, domain)
	}
	if params == nil {
		params = ports.Params{}
	}
	doc := gojsonschema.NewGoLoader(map[string]any(params))
	for _, s := range []*gojsonschema.Schema{p.common, p.domains[domain]} {
		res, err := s.Validate(doc)
		if err != nil {
			return fmt.Errorf("%w: parameters: %v", ports.ErrInvalidInput, err)
		}
		if !res.Valid() {
			var msgs []string
			for i, e := range res.Errors() {
				if i >= 5 {
					break
				}
				msgs = append(msgs, e.String())
			}
			return fmt.Errorf("%w: %s", ports.ErrInvalidInput, strings.Join(msgs, "; "))
		}
	}
	return nil
}
