package plan

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

// DefaultPlanPath selects the built-in Kiki plan
const DefaultPlanPath = ""

//go:embed kiki.yaml
var defaultPlan []byte

// Loader reads deployment plans from YAML files
type Loader struct{}

var _ usecase.PlanLoader = (*Loader)(nil)

// NewLoader creates a new plan loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadPlan parses the plan at path, or the built-in plan when path is empty
func (l *Loader) LoadPlan(ctx context.Context, path string) (*domain.Plan, error) {
	data := defaultPlan
	source := "built-in plan"
	if path != DefaultPlanPath {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read plan: %w", err)
		}
		source = path
	}

	plan, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}
	return plan, nil
}

func parse(data []byte) (*domain.Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var plan domain.Plan
	if err := dec.Decode(&plan); err != nil {
		return nil, err
	}
	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("plan has no steps")
	}
	for name, step := range plan.Steps {
		if step == nil {
			step = &domain.Step{}
			plan.Steps[name] = step
		}
		step.Name = name
	}
	return &plan, nil
}
