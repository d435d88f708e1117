package plans

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type yamlDocument struct {
	Plans []Plan `yaml:"plans"`
}

type yamlSource struct {
	plans []Plan
}

// NewYAMLSource parses a plan table in the form:
//
//	plans:
//	  - tier: free
//	    name: Free
//	    price_usd: 0
//	    limits:
//	      daily_text_a: 10
//	      monthly_images: 5
//	    features: []
//
// Dimensions omitted from a plan fail catalog validation.
func NewYAMLSource(r io.Reader) (Source, error) {
	var doc yamlDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	seen := make(map[Tier]struct{}, len(doc.Plans))
	for _, p := range doc.Plans {
		if _, dup := seen[p.Tier]; dup {
			return nil, errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("duplicate plan for tier %s", p.Tier))
		}
		seen[p.Tier] = struct{}{}
	}

	return &yamlSource{plans: doc.Plans}, nil
}

// NewYAMLFileSource opens path and parses it with NewYAMLSource.
func NewYAMLFileSource(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	defer f.Close()
	return NewYAMLSource(f)
}

func (s *yamlSource) Load(ctx context.Context) (map[Tier]Plan, error) {
	out := make(map[Tier]Plan, len(s.plans))
	for _, p := range s.plans {
		out[p.Tier] = clonePlan(p)
	}
	return out, nil
}
