// Package models defines the data shared between the stages of a session.
package models

import (
	"fmt"
	"strings"

	aerrors "github.com/p-blackswan/autodev/internal/errors"
)

// QA is one clarifying question and the user's answer to it.
type QA struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// Requirements is the session-owned description of what to build. The
// clarifier appends to it; every later stage reads it.
type Requirements struct {
	Description        string `json:"description"`
	RepoPath           string `json:"repo_path,omitempty"`
	Title              string `json:"title,omitempty"`
	ProjectDescription string `json:"project_description,omitempty"`
	Clarifications     []QA   `json:"clarifications,omitempty"`

	// TestFeedback holds diagnostic output of the most recent failing test run.
	TestFeedback string `json:"test_feedback,omitempty"`
}

// AddClarification records a question/answer pair, keeping insertion order.
// Asking the same question again replaces the earlier answer in place.
func (r *Requirements) AddClarification(question, answer string) {
	for i := range r.Clarifications {
		if r.Clarifications[i].Question == question {
			r.Clarifications[i].Answer = answer
			return
		}
	}
	r.Clarifications = append(r.Clarifications, QA{Question: question, Answer: answer})
}

// RequireRepo returns ErrNoRepoPath when no repository is configured.
func (r *Requirements) RequireRepo() error {
	if strings.TrimSpace(r.RepoPath) == "" {
		return aerrors.ErrNoRepoPath
	}
	return nil
}

// Render formats the requirements for inclusion in an oracle prompt.
func (r *Requirements) Render() string {
	var b strings.Builder
	if r.Title != "" {
		fmt.Fprintf(&b, "Project: %s\n", r.Title)
	}
	if r.ProjectDescription != "" {
		fmt.Fprintf(&b, "Project description: %s\n", r.ProjectDescription)
	}
	fmt.Fprintf(&b, "Requirement: %s\n", r.Description)
	if len(r.Clarifications) > 0 {
		b.WriteString("\nClarifications:\n")
		for _, qa := range r.Clarifications {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n", qa.Question, qa.Answer)
		}
	}
	if r.TestFeedback != "" {
		fmt.Fprintf(&b, "\nLatest test failure:\n%s\n", r.TestFeedback)
	}
	return b.String()
}
