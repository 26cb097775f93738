package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"
	"unicode"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/asterisk-lang/asterisk"
)

const replHelp = `Commands:
  :help                 show this help
  :exit / :quit         exit REPL
  :vars                 list current variables
  :reset                clear runtime variables
  :load <path>          execute a .sk file
  :pwd                  show current directory
  :cd <path>            change current directory
  :time                 toggle execution time display
  :cache clear          clear parse cache

Notes:
  - Multi-line input is supported for blocks and unfinished expressions.
  - Type 'exit' or 'quit' (without ':') to exit as well.`

type model struct {
	interp      *asterisk.Interp
	input       []rune
	col         int
	pending     []string
	history     []string
	historyIdx  int
	showTiming  bool
	quitting    bool
	err         error
	textStyle   lipgloss.Style
	cursorStyle lipgloss.Style
	errorStyle  lipgloss.Style
	infoStyle   lipgloss.Style
}

func newModel() *model {
	return &model{
		interp:      asterisk.New(),
		historyIdx:  0,
		textStyle:   lipgloss.NewStyle().Inline(true),
		cursorStyle: lipgloss.NewStyle().Inline(true).Reverse(true),
		errorStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		infoStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	}
}

// RunREPL starts the interactive shell.
func RunREPL(in io.Reader, out io.Writer) error {
	m := newModel()
	p := tea.NewProgram(m, tea.WithInput(in), tea.WithOutput(out))
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

func (m *model) Init() tea.Cmd {
	return tea.Printf("Asterisk REPL %s - :help for commands", version)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.err != nil {
		m.err = nil
	}
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+d":
			if len(m.input) == 0 && len(m.pending) == 0 {
				m.quitting = true
				return m, tea.Quit
			}
			m.deleteCharAfter()
		case "ctrl+c":
			// clear the line and any pending continuation
			m.pending = m.pending[:0]
			m.input = m.input[:0]
			m.col = 0
		case "ctrl+l":
			return m, tea.ClearScreen
		case "up":
			m.upHistory()
		case "down":
			m.downHistory()
		case "left":
			if m.col > 0 {
				m.col--
			}
		case "right", "ctrl+f":
			if m.col < len(m.input) {
				m.col++
			}
		case "backspace", "ctrl+h":
			if m.col > 0 {
				m.input = slices.Delete(m.input, m.col-1, m.col)
				m.col--
			}
		case "delete":
			m.deleteCharAfter()
		case "home", "ctrl+a":
			m.col = 0
		case "end", "ctrl+e":
			m.col = len(m.input)
		case "ctrl+k":
			m.input = m.input[:m.col]
		case "ctrl+u":
			m.input = slices.Delete(m.input, 0, m.col)
			m.col = 0
		case "enter":
			return m.onEnter()
		case "tab":
			m.insertRunes([]rune{' ', ' '})
		default:
			m.insertRunes(msg.Runes)
		}
	}
	return m, nil
}

func (m *model) insertRunes(runes []rune) {
	var buf []rune
	for _, r := range runes {
		if unicode.IsPrint(r) {
			buf = append(buf, r)
		}
	}
	if len(buf) != 0 {
		m.input = slices.Concat(m.input[:m.col:m.col], buf, m.input[m.col:])
		m.col += len(buf)
	}
}

func (m *model) deleteCharAfter() {
	if m.col < len(m.input) {
		m.input = slices.Delete(m.input, m.col, m.col+1)
	}
}

func (m *model) upHistory() {
	if len(m.pending) > 0 || len(m.history) == 0 {
		return
	}
	if m.historyIdx > 0 {
		m.historyIdx--
	}
	m.setInput(m.history[m.historyIdx])
}

func (m *model) downHistory() {
	if len(m.pending) > 0 || len(m.history) == 0 {
		return
	}
	if m.historyIdx+1 < len(m.history) {
		m.historyIdx++
		m.setInput(m.history[m.historyIdx])
	} else {
		m.historyIdx = len(m.history)
		m.setInput("")
	}
}

func (m *model) setInput(s string) {
	m.input = []rune(s)
	m.col = len(m.input)
}

func (m *model) onEnter() (tea.Model, tea.Cmd) {
	line := string(m.input)
	stripped := strings.TrimSpace(line)

	echo := tea.Println(m.view(true))
	m.input = m.input[:0]
	m.col = 0

	if len(m.pending) == 0 {
		switch {
		case stripped == "":
			return m, echo
		case strings.HasPrefix(stripped, ":"):
			output, quit := m.handleCommand(stripped)
			cmds := []tea.Cmd{echo}
			if output != "" {
				cmds = append(cmds, tea.Println(output))
			}
			if quit {
				m.quitting = true
				cmds = append(cmds, tea.Quit)
			}
			return m, tea.Sequence(cmds...)
		case stripped == "exit" || stripped == "quit":
			m.quitting = true
			return m, tea.Sequence(echo, tea.Quit)
		}
	}

	m.pending = append(m.pending, line)
	src := strings.Join(m.pending, "\n")
	if m.interp.IsIncomplete([]byte(src)) {
		return m, echo
	}
	m.pending = m.pending[:0]

	if strings.TrimSpace(src) != "" {
		m.history = append(m.history, src)
	}
	m.historyIdx = len(m.history)

	cmds := []tea.Cmd{echo}
	started := time.Now()
	value, err := m.interp.Run([]byte(src), "")
	elapsed := time.Since(started)
	if err != nil {
		cmds = append(cmds, tea.Println(m.errorStyle.Render(err.Error())))
	} else if value != nil {
		cmds = append(cmds, tea.Println(value.String()))
	}
	if err == nil && m.showTiming {
		cmds = append(cmds, tea.Printf("[%.3f ms]", float64(elapsed.Microseconds())/1000.0))
	}
	return m, tea.Sequence(cmds...)
}

func (m *model) handleCommand(cmd string) (output string, quit bool) {
	switch {
	case cmd == ":help" || cmd == ":h":
		return replHelp, false
	case cmd == ":exit" || cmd == ":quit":
		return "", true
	case cmd == ":vars":
		globals := m.interp.Globals()
		if len(globals) == 0 {
			return "(no variables)", false
		}
		names := make([]string, 0, len(globals))
		for name := range globals {
			names = append(names, name)
		}
		sort.Strings(names)
		var b strings.Builder
		for i, name := range names {
			if i != 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%s = %s", name, globals[name].String())
		}
		return b.String(), false
	case cmd == ":reset":
		m.interp.Reset()
		return "Runtime variables cleared.", false
	case cmd == ":pwd":
		cwd, err := os.Getwd()
		if err != nil {
			return m.errorStyle.Render(err.Error()), false
		}
		return cwd, false
	case strings.HasPrefix(cmd, ":cd"):
		target := strings.TrimSpace(strings.TrimPrefix(cmd, ":cd"))
		if target == "" {
			return m.errorStyle.Render("Usage: :cd <path>"), false
		}
		if target == "~" || strings.HasPrefix(target, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				target = filepath.Join(home, strings.TrimPrefix(target, "~"))
			}
		}
		if err := os.Chdir(target); err != nil {
			return m.errorStyle.Render(err.Error()), false
		}
		cwd, _ := os.Getwd()
		m.interp.SetDir(cwd)
		return cwd, false
	case strings.HasPrefix(cmd, ":load"):
		target := strings.TrimSpace(strings.TrimPrefix(cmd, ":load"))
		if target == "" {
			return m.errorStyle.Render("Usage: :load <path>"), false
		}
		started := time.Now()
		value, err := m.interp.RunFile(target)
		elapsed := time.Since(started)
		if err != nil {
			if os.IsNotExist(err) {
				return m.errorStyle.Render("Error: file not found - " + target), false
			}
			return m.errorStyle.Render(err.Error()), false
		}
		var b strings.Builder
		if value != nil {
			b.WriteString(value.String())
		}
		if m.showTiming {
			if b.Len() != 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "[%.3f ms]", float64(elapsed.Microseconds())/1000.0)
		}
		return b.String(), false
	case cmd == ":time":
		m.showTiming = !m.showTiming
		if m.showTiming {
			return "Timing: on", false
		}
		return "Timing: off", false
	case cmd == ":cache clear":
		m.interp.InvalidateParseCache()
		return "Parse cache cleared.", false
	}
	return m.errorStyle.Render("Unknown command: "+cmd) + "\nType :help for available commands.", false
}

func (m *model) view(persist bool) string {
	if persist || m.quitting {
		cursorStyle := m.cursorStyle
		m.cursorStyle = m.textStyle
		defer func() { m.cursorStyle = cursorStyle }()
	}
	var b strings.Builder
	if len(m.pending) == 0 {
		b.WriteString(">>> ")
	} else {
		b.WriteString("... ")
	}
	b.WriteString(m.textStyle.Render(string(m.input[:m.col])))
	if m.col < len(m.input) {
		b.WriteString(m.cursorStyle.Render(string(m.input[m.col])))
		b.WriteString(m.textStyle.Render(string(m.input[m.col+1:])))
	} else {
		b.WriteString(m.cursorStyle.Render(" "))
	}
	if !persist {
		b.WriteByte('\n')
		if m.err != nil {
			b.WriteString(m.errorStyle.Render(m.err.Error()))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (m *model) View() string {
	return m.view(false)
}
