// Package clipboard copies text to the system clipboard through whichever
// platform helper is installed.
package clipboard

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrNoClipboard is returned when no clipboard helper is installed
var ErrNoClipboard = errors.New("no clipboard command found")

// Timeout bounds a single copy.
const Timeout = 5 * time.Second

// Tool is a clipboard helper that reads the text to copy on stdin.
type Tool struct {
	Name string
	Args []string
}

func (t Tool) String() string {
	return strings.Join(append([]string{t.Name}, t.Args...), " ")
}

// Tools lists the helpers tried by Copy, in order.
var Tools = []Tool{
	{Name: "pbcopy"},
	{Name: "wl-copy"},
	{Name: "xclip", Args: []string{"-selection", "clipboard"}},
	{Name: "xsel", Args: []string{"--clipboard", "--input"}},
	{Name: "clip.exe"},
}

// Detect returns the first installed helper.
func Detect() (Tool, error) {
	for _, t := range Tools {
		if _, err := exec.LookPath(t.Name); err == nil {
			return t, nil
		}
	}
	return Tool{}, ErrNoClipboard
}

// Copy places text on the clipboard.
func Copy(ctx context.Context, text string) error {
	tool, err := Detect()
	if err != nil {
		return err
	}
	return tool.Copy(ctx, text)
}

// Copy runs the helper with text on stdin.
func (t Tool) Copy(ctx context.Context, text string) error {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.Name, t.Args...)
	cmd.Stdin = strings.NewReader(text)

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%s timed out", t.Name)
		}
		if msg := strings.TrimSpace(string(output)); msg != "" {
			return fmt.Errorf("running %s: %w: %s", t, err, msg)
		}
		return fmt.Errorf("running %s: %w", t, err)
	}
	return nil
}
