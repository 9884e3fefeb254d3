// Package clipboard copies solution text to the system clipboard.
package clipboard

import (
	"errors"
	"strings"

	cb "github.com/atotto/clipboard"
)

var ErrEmpty = errors.New("nothing to copy")

func Read() (string, error) {
	return cb.ReadAll()
}

func Copy(text string) error {
	return cb.WriteAll(text)
}

// Solution joins the accepted answers one per line.
func Solution(accepted []string) string {
	var lines []string
	for _, a := range accepted {
		if a = strings.TrimSpace(a); a != "" {
			lines = append(lines, a)
		}
	}
	return strings.Join(lines, "\n")
}

// CopySolution writes the accepted answers to the clipboard and returns
// the copied text.
func CopySolution(accepted []string) (string, error) {
	text := Solution(accepted)
	if text == "" {
		return "", ErrEmpty
	}
	if cb.Unsupported {
		return "", errors.New("clipboard: no clipboard utility available")
	}
	return text, Copy(text)
}
