package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/ericfisherdev/policypanel/internal/application"
)

// TerminalPrompter reads a token from the command's input. On an interactive
// terminal the token is not echoed. An empty line or end of input cancels.
type TerminalPrompter struct {
	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
}

// NewTerminalPrompter creates a prompter that writes its prompt to out.
func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: in, reader: bufio.NewReader(in), out: out}
}

// PromptToken asks for a personal access token.
func (p *TerminalPrompter) PromptToken(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fmt.Fprint(p.out, "GitHub personal access token: ")

	var line string
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		line = string(raw)
	} else {
		s, err := p.reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read token: %w", err)
		}
		line = s
	}

	token := strings.TrimSpace(line)
	if token == "" {
		return "", application.ErrPromptCancelled
	}
	return token, nil
}
