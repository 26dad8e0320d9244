package setup

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

// InteractivePrompt handles interactive user input
type InteractivePrompt struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewInteractivePrompt creates a prompt reading stdin and writing stdout
func NewInteractivePrompt() *InteractivePrompt {
	return NewPrompt(os.Stdin, os.Stdout)
}

// NewPrompt creates a prompt over arbitrary streams
func NewPrompt(in io.Reader, out io.Writer) *InteractivePrompt {
	return &InteractivePrompt{
		scanner: bufio.NewScanner(in),
		out:     out,
	}
}

func (p *InteractivePrompt) readLine() (string, bool) {
	if !p.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.scanner.Text()), true
}

// ConfirmOverwrite prompts the user to confirm overwriting an existing file
func (p *InteractivePrompt) ConfirmOverwrite(path string) bool {
	fmt.Fprintf(p.out, "Configuration file %s already exists.\n", path)
	return p.Confirm("Do you want to update it?", false)
}

// Confirm asks a yes/no question; an empty answer returns def
func (p *InteractivePrompt) Confirm(question string, def bool) bool {
	hint := "(y/N)"
	if def {
		hint = "(Y/n)"
	}
	fmt.Fprintf(p.out, "%s %s: ", question, hint)

	response, ok := p.readLine()
	if !ok || response == "" {
		return def
	}
	response = strings.ToLower(response)
	return response == "y" || response == "yes"
}

// GetStringInput prompts for a string input with an optional default value
func (p *InteractivePrompt) GetStringInput(prompt string, defaultValue string) string {
	if defaultValue != "" {
		fmt.Fprintf(p.out, "%s (default: %s): ", prompt, defaultValue)
	} else {
		fmt.Fprintf(p.out, "%s: ", prompt)
	}

	input, ok := p.readLine()
	if !ok || input == "" {
		return defaultValue
	}
	return input
}

// GetSecretInput prompts for a value whose current setting is shown masked
func (p *InteractivePrompt) GetSecretInput(prompt string, current string) string {
	if current != "" {
		fmt.Fprintf(p.out, "%s (current: %s, leave empty to keep): ", prompt, MaskSecret(current))
	} else {
		fmt.Fprintf(p.out, "%s: ", prompt)
	}

	input, ok := p.readLine()
	if !ok || input == "" {
		return current
	}
	return input
}

// SelectStatus presents the server statuses and returns the chosen name.
// An empty answer keeps current; 0 returns "".
func (p *InteractivePrompt) SelectStatus(purpose string, statuses []redmine.IssueStatus, current string) string {
	if len(statuses) == 0 {
		return current
	}

	fmt.Fprintf(p.out, "\nWhich status marks an issue as %s?\n", purpose)
	for i, s := range statuses {
		mark := " "
		if s.Name == current {
			mark = "*"
		}
		fmt.Fprintf(p.out, "%s%2d. %s\n", mark, i+1, s.Name)
	}
	fmt.Fprintf(p.out, "  0. None\n")
	fmt.Fprintf(p.out, "Select a status (0-%d): ", len(statuses))

	input, ok := p.readLine()
	if !ok || input == "" {
		return current
	}

	if choice, err := strconv.Atoi(input); err == nil {
		if choice == 0 {
			return ""
		}
		if choice > 0 && choice <= len(statuses) {
			return statuses[choice-1].Name
		}
	}
	for _, s := range statuses {
		if strings.EqualFold(s.Name, input) {
			return s.Name
		}
	}

	fmt.Fprintln(p.out, "Invalid selection, keeping current value.")
	return current
}

// MaskSecret keeps the last four characters of a secret
func MaskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
