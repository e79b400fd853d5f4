// Package prompt asks the person running a session for input.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Asker is a blocking single-line request/response. Answers are not validated.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// LineAsker writes the question to out and reads one line from in.
type LineAsker struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// NewLineAsker creates an Asker over a terminal-like reader and writer.
func NewLineAsker(in io.Reader, out io.Writer) *LineAsker {
	return &LineAsker{in: bufio.NewReader(in), out: out}
}

// Ask prints question and returns the trimmed answer line. A final line
// without a newline is accepted; EOF before any input is an error.
func (a *LineAsker) Ask(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := fmt.Fprintf(a.out, "%s\n> ", strings.TrimSpace(question)); err != nil {
		return "", fmt.Errorf("prompt: write: %w", err)
	}
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("prompt: read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question. Anything starting with "y" is yes.
func Confirm(ctx context.Context, a Asker, question string) (bool, error) {
	answer, err := a.Ask(ctx, question+" [y/N]")
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y"), nil
}
