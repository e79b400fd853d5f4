package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/p-blackswan/autodev/internal/develop"
	aerrors "github.com/p-blackswan/autodev/internal/errors"
	"github.com/p-blackswan/autodev/internal/session"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name   string
		report *session.Report
		err    error
		want   int
	}{
		{"passed", &session.Report{Outcome: develop.OutcomePassed}, nil, exitOK},
		{"max reached", &session.Report{Outcome: develop.OutcomeMaxReached}, nil, exitMaxReached},
		{"no report", nil, nil, exitOK},
		{"interrupted", nil, fmt.Errorf("develop: %w", context.Canceled), exitInterrupted},
		{"no response", nil, fmt.Errorf("plan: %w", aerrors.ErrNoResponse), exitFailed},
		{"vcs", &session.Report{}, fmt.Errorf("commit: %w", aerrors.ErrVCS), exitFailed},
		{"oracle timeout", nil, aerrors.ErrTimeout, exitFailed},
		{"unclassified", nil, errors.New("listing: permission denied"), exitUnexpected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.report, tt.err))
		})
	}
}
