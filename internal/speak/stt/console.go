package stt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Console reads the "transcript" as a typed line. It is the fallback when
// no microphone pipeline is configured.
type Console struct {
	in     *bufio.Reader
	out    io.Writer
	prompt string

	// a read abandoned by a cancelled Listen is picked up by the next one
	pending chan lineResult
}

type lineResult struct {
	line string
	err  error
}

// NewConsole reads from in and echoes the prompt to out. Nil arguments mean
// stdin and stdout.
func NewConsole(in io.Reader, out io.Writer) *Console {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return &Console{in: bufio.NewReader(in), out: out, prompt: "🎤 > "}
}

func (c *Console) Name() string { return string(ListenerTypeConsole) }

func (c *Console) Listen(ctx context.Context, _ string) (string, error) {
	fmt.Fprint(c.out, c.prompt)

	if c.pending == nil {
		c.pending = make(chan lineResult, 1)
		go func(ch chan<- lineResult) {
			line, err := c.in.ReadString('\n')
			ch <- lineResult{line, err}
		}(c.pending)
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-c.pending:
		c.pending = nil

		text := strings.TrimSpace(r.line)
		switch {
		case text != "":
			return text, nil
		case errors.Is(r.err, io.EOF):
			return "", io.EOF
		case r.err != nil:
			return "", fmt.Errorf("failed to read input: %w", r.err)
		default:
			return "", ErrNoResult
		}
	}
}
