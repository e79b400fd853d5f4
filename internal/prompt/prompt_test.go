package prompt

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineAsker_Ask(t *testing.T) {
	var out bytes.Buffer
	a := NewLineAsker(strings.NewReader("  redis  \nsecond\nlast"), &out)

	got, err := a.Ask(context.Background(), "Which backend?")
	require.NoError(t, err)
	assert.Equal(t, "redis", got)
	assert.Equal(t, "Which backend?\n> ", out.String())

	got, err = a.Ask(context.Background(), "Again?")
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	got, err = a.Ask(context.Background(), "No newline?")
	require.NoError(t, err)
	assert.Equal(t, "last", got)

	_, err = a.Ask(context.Background(), "Nothing left?")
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineAsker_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLineAsker(strings.NewReader("x\n"), io.Discard).Ask(ctx, "q")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"Yes\n", true},
		{" YEP \n", true},
		{"n\n", false},
		{"\n", false},
		{"sure\n", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got, err := Confirm(context.Background(), NewLineAsker(strings.NewReader(tt.input), &out), "Commit?")
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
		assert.Contains(t, out.String(), "Commit? [y/N]")
	}
}
