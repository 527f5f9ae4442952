package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/aretw0/grove/pkg/domain"
)

// IsInteractive reports whether stdin is attached to a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// PromptState interactively collects key=value pairs for an initial session
// state. An empty line finishes the prompt. Values are parsed as JSON when
// possible so `count=3` yields an integer and `flag=true` a boolean.
func PromptState(in io.Reader, out io.Writer) (domain.StateMap, error) {
	fmt.Fprintln(out, "Initial state (key=value per line, empty line to finish):")

	state := make(domain.StateMap)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "  ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}

		key, raw, found := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			fmt.Fprintln(out, "  expected key=value")
			continue
		}
		state[key] = parseScalar(strings.TrimSpace(raw))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("prompt read failed: %w", err)
	}
	if len(state) == 0 {
		return nil, nil
	}
	return state, nil
}

// parseScalar interprets a prompt value: JSON scalars keep their type,
// everything else is a string.
func parseScalar(raw string) domain.Value {
	if v, err := domain.ParseStateJSON([]byte(fmt.Sprintf(`{"v":%s}`, raw))); err == nil {
		return v["v"]
	}
	return domain.String(raw)
}
