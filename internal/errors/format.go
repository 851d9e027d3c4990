package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	styleRed   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleCyan  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	styleBlue  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleGray  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleBold  = lipgloss.NewStyle().Bold(true)
	styleTitle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// colorEnabled controls whether styles are applied.
var colorEnabled = true

// DisableColors disables styled output.
func DisableColors() {
	colorEnabled = false
}

// EnableColors enables styled output.
func EnableColors() {
	colorEnabled = true
}

func render(style lipgloss.Style, text string) string {
	if !colorEnabled {
		return text
	}
	return style.Render(text)
}

// Format returns the error formatted for terminal display.
func (e *Error) Format() string {
	var b strings.Builder

	b.WriteString("\n")
	if e.Code != "" {
		b.WriteString(render(styleTitle, "ERROR "))
		b.WriteString(render(styleBold, e.Code+": "))
	} else {
		b.WriteString(render(styleTitle, "ERROR: "))
	}
	b.WriteString(e.Message)
	b.WriteString("\n\n")

	if e.File != "" && (e.Location == nil || e.Location.File != e.File) {
		b.WriteString("  ")
		b.WriteString(render(styleCyan, e.File))
		b.WriteString("\n\n")
	}

	if e.Location != nil {
		b.WriteString("  ")
		b.WriteString(render(styleCyan, e.Location.String()))
		b.WriteString("\n\n")

		if len(e.Context) > 0 {
			startLine := e.Location.Line - len(e.Context)/2
			for i, line := range e.Context {
				lineNum := startLine + i
				if lineNum == e.Location.Line {
					b.WriteString("  ")
					b.WriteString(render(styleRed, "→ "))
					b.WriteString(fmt.Sprintf("%4d", lineNum))
					b.WriteString(render(styleGray, " │ "))
					b.WriteString(line)
					b.WriteString("\n")

					if e.Location.Column > 0 {
						b.WriteString("       ")
						b.WriteString(render(styleGray, "│ "))
						b.WriteString(strings.Repeat(" ", e.Location.Column-1))
						b.WriteString(render(styleRed, "^"))
						b.WriteString("\n")
					}
				} else {
					b.WriteString("    ")
					b.WriteString(fmt.Sprintf("%4d", lineNum))
					b.WriteString(render(styleGray, " │ "))
					b.WriteString(line)
					b.WriteString("\n")
				}
			}
			b.WriteString("\n")
		}
	}

	if e.Detail != "" {
		for _, line := range wrapText(e.Detail, 70) {
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if e.Locator != "" {
		b.WriteString("  ")
		b.WriteString(render(styleGray, "At: "))
		b.WriteString(e.Locator)
		b.WriteString("\n\n")
	}

	if e.Suggestion != "" {
		b.WriteString("  ")
		b.WriteString(render(styleCyan, "Hint: "))
		b.WriteString(e.Suggestion)
		b.WriteString("\n\n")
	}

	if e.DocURL != "" {
		b.WriteString("  ")
		b.WriteString(render(styleGray, "Learn more: "))
		b.WriteString(render(styleBlue, e.DocURL))
		b.WriteString("\n")
	}

	return b.String()
}

// FormatCompact returns a compact single-line error format.
func (e *Error) FormatCompact() string {
	var b strings.Builder

	switch {
	case e.Location != nil:
		b.WriteString(e.Location.String())
		b.WriteString(": ")
	case e.File != "":
		b.WriteString(e.File)
		b.WriteString(": ")
	}

	if e.Code != "" {
		b.WriteString(e.Code)
		b.WriteString(": ")
	}

	b.WriteString(e.Message)
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	return b.String()
}

type jsonError struct {
	Code     string    `json:"code,omitempty"`
	Kind     Kind      `json:"kind,omitempty"`
	Category Category  `json:"category"`
	Message  string    `json:"message"`
	Detail   string    `json:"detail,omitempty"`
	File     string    `json:"file,omitempty"`
	Locator  string    `json:"locator,omitempty"`
	Param    string    `json:"param,omitempty"`
	Location *Location `json:"location,omitempty"`
	DocURL   string    `json:"docUrl,omitempty"`
}

// FormatJSON returns the error as a JSON object. The dev server forwards
// this to live-reload clients.
func (e *Error) FormatJSON() string {
	data, err := json.Marshal(jsonError{
		Code:     e.Code,
		Kind:     e.Kind,
		Category: e.Category,
		Message:  e.Message,
		Detail:   e.Detail,
		File:     e.File,
		Locator:  e.Locator,
		Param:    e.Param,
		Location: e.Location,
		DocURL:   e.DocURL,
	})
	if err != nil {
		return fmt.Sprintf(`{"message":%q}`, e.Error())
	}
	return string(data)
}

// wrapText wraps text to the specified width.
func wrapText(text string, width int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= width {
		return []string{text}
	}

	var lines []string
	words := strings.Fields(text)
	var current strings.Builder

	for _, word := range words {
		if current.Len()+len(word)+1 > width {
			if current.Len() > 0 {
				lines = append(lines, current.String())
				current.Reset()
			}
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}

	if current.Len() > 0 {
		lines = append(lines, current.String())
	}

	return lines
}

// PrintError prints a formatted error to stderr.
func PrintError(err error) {
	Fprint(os.Stderr, err)
}

// Fprint prints a formatted error to w.
func Fprint(w io.Writer, err error) {
	var se *Error
	if As(err, &se) {
		fmt.Fprint(w, se.Format())
		return
	}
	fmt.Fprintf(w, "\n%s %s\n\n", render(styleTitle, "ERROR:"), err.Error())
}
