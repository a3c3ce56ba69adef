package cleanup

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Prompter asks the operator to confirm one deletion. Implementations
// block until an answer is available.
type Prompter interface {
	ConfirmDelete(username string) bool
}

// TerminalPrompter reads a y/N answer from stdin. Anything but an
// explicit "y" declines.
type TerminalPrompter struct {
	in *bufio.Reader
}

func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(os.Stdin)}
}

func (p *TerminalPrompter) ConfirmDelete(username string) bool {
	fmt.Printf("  Delete user %s? [y/N]: ", username)
	line, err := p.in.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "y")
}

// LoadUsernameFile reads one username per line, skipping blanks.
func LoadUsernameFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var usernames []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			usernames = append(usernames, line)
		}
	}
	return usernames, sc.Err()
}
