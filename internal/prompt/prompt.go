// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prompt asks the run questions on a terminal: the notebook root,
// whether to combine the books and, if so, the combined title and author.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrAborted is returned when the user cancels with Esc or Ctrl+C.
var ErrAborted = errors.New("prompt aborted")

// Kind selects how an answer is read.
type Kind int

const (
	Text Kind = iota
	Confirm
)

// Field is one question.
type Field struct {
	Key     string
	Label   string
	Default string
	Kind    Kind

	// Validate rejects an answer; the message is shown under the input.
	Validate func(string) error

	// When skips the field unless it returns true for the answers so far.
	When func(Answers) bool
}

// Answers maps field keys to answers. Confirm answers are "yes" or "no".
type Answers map[string]string

// Bool reports whether a confirm answer is yes.
func (a Answers) Bool(key string) bool { return a[key] == "yes" }

var (
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	answerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

type model struct {
	fields  []Field
	idx     int
	input   textinput.Model
	answers Answers
	asked   []string
	err     string
	done    bool
	aborted bool
}

func newModel(fields []Field) model {
	m := model{fields: fields, idx: -1, answers: Answers{}, input: textinput.New()}
	m.input.CharLimit = 4096
	m.advance()
	return m
}

// advance moves to the next applicable field and resets the input.
func (m *model) advance() {
	for m.idx++; m.idx < len(m.fields); m.idx++ {
		f := m.fields[m.idx]
		if f.When == nil || f.When(m.answers) {
			m.input.Reset()
			m.input.Placeholder = f.Default
			m.input.Focus()
			m.err = ""
			return
		}
	}
	m.done = true
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.aborted = true
			return m, tea.Quit
		case tea.KeyEnter:
			m.submit()
			if m.done {
				return m, tea.Quit
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) submit() {
	f := m.fields[m.idx]
	val := strings.TrimSpace(m.input.Value())
	if val == "" {
		val = f.Default
	}
	if f.Kind == Confirm {
		yes, ok := parseConfirm(val)
		if !ok {
			m.err = "answer y or n"
			return
		}
		val = "no"
		if yes {
			val = "yes"
		}
	}
	if f.Validate != nil {
		if err := f.Validate(val); err != nil {
			m.err = err.Error()
			return
		}
	}
	m.answers[f.Key] = val
	m.asked = append(m.asked, f.Key)
	m.advance()
}

func parseConfirm(s string) (yes, ok bool) {
	switch strings.ToLower(s) {
	case "y", "yes":
		return true, true
	case "n", "no":
		return false, true
	}
	return false, false
}

func (m model) View() string {
	var b strings.Builder
	for _, key := range m.asked {
		f := m.field(key)
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(f.Label), answerStyle.Render(m.answers[key]))
	}
	if m.done || m.aborted {
		return b.String()
	}
	f := m.fields[m.idx]
	label := f.Label
	if f.Kind == Confirm {
		label += " (y/n)"
	}
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(label), m.input.View())
	if m.err != "" {
		b.WriteString(errorStyle.Render(m.err) + "\n")
	}
	b.WriteString(hintStyle.Render("enter to accept, esc to cancel") + "\n")
	return b.String()
}

func (m model) field(key string) Field {
	for _, f := range m.fields {
		if f.Key == key {
			return f
		}
	}
	return Field{Key: key, Label: key}
}

// Ask runs the fields as a terminal form on in and out. Nil in and out
// select the process terminal.
func Ask(fields []Field, in io.Reader, out io.Writer) (Answers, error) {
	if len(fields) == 0 {
		return Answers{}, nil
	}
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stderr
	}
	final, err := tea.NewProgram(newModel(fields), tea.WithInput(in), tea.WithOutput(out)).Run()
	if err != nil {
		return nil, fmt.Errorf("running prompt: %w", err)
	}
	m := final.(model)
	if m.aborted {
		return nil, ErrAborted
	}
	return m.answers, nil
}
