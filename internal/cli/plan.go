package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/grove/pkg/domain"
)

// Plan is a batch plan file: a list of work items to run concurrently.
//
//	items:
//	  - op: create
//	    key: alice
//	    agent_id: support-bot
//	    state:
//	      user_name: Alice
//	  - op: message
//	    session_id: abc-123
//	    text: "Hello!"
type Plan struct {
	Items []domain.WorkItem `yaml:"items"`
}

// LoadPlan reads and validates a YAML plan file. Validation failures carry
// the item index so plan authors can find the offender.
func LoadPlan(path string) ([]domain.WorkItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	if len(plan.Items) == 0 {
		return nil, fmt.Errorf("plan %s contains no items", path)
	}

	for i, item := range plan.Items {
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("plan item %d: %w", i, err)
		}
	}
	return plan.Items, nil
}
