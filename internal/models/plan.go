package models

import (
	"encoding/json"
	"fmt"
)

// PlanStep is one step of a delivery plan. The oracle may return either a
// bare string or an object; both decode into a PlanStep.
type PlanStep struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// UnmarshalJSON accepts "step text" or {"title": ..., "description": ...}.
func (s *PlanStep) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		s.Title = text
		s.Description = ""
		return nil
	}
	type alias PlanStep
	var obj struct {
		alias
		Step string `json:"step"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("plan step: %w", err)
	}
	*s = PlanStep(obj.alias)
	if s.Title == "" {
		s.Title = obj.Step
	}
	if s.Title == "" {
		s.Title = obj.Name
	}
	return nil
}

// DeliveryPlan is the structured plan produced once by the plan synthesizer.
// Nothing downstream rewrites it.
type DeliveryPlan struct {
	Title              string     `json:"title" yaml:"title"`
	ShortDescription   string     `json:"short_description" yaml:"short_description"`
	LongDescription    string     `json:"long_description" yaml:"long_description"`
	AcceptanceCriteria []string   `json:"acceptance_criteria" yaml:"acceptance_criteria"`
	Steps              []PlanStep `json:"plan" yaml:"plan"`
	Estimate           string     `json:"estimate,omitempty" yaml:"estimate,omitempty"`
	Dependencies       []string   `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Risks              []string   `json:"risks,omitempty" yaml:"risks,omitempty"`
	Notes              string     `json:"notes,omitempty" yaml:"notes,omitempty"`
}
