package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/wippyai/npdm-loader/report"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	okStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	detailStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#666666")).
			Padding(0, 1)
)

type keyMap struct {
	Up   key.Binding
	Down key.Binding
	Tab  key.Binding
	Quit key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Tab, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Up:   key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down: key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Tab:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "declared/restricted")),
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type pane int

const (
	paneDeclared pane = iota
	paneRestricted
)

type interactiveModel struct {
	err      error
	report   *report.Report
	session  *session
	help     help.Model
	detail   viewport.Model
	path     string
	selected int
	pane     pane
}

type loadedMsg struct {
	err    error
	report *report.Report
}

func newInteractiveModel(s *session, path string) *interactiveModel {
	return &interactiveModel{
		session: s,
		path:    path,
		help:    help.New(),
		detail:  viewport.New(60, 8),
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.load
}

func (m *interactiveModel) load() tea.Msg {
	res, err := m.session.loader.Load(m.session.identity)
	if res == nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{report: report.New(res, err)}
}

func (m *interactiveModel) entries() []report.Entry {
	if m.report == nil {
		return nil
	}
	if m.pane == paneRestricted {
		return m.report.Restricted
	}
	return m.report.Declared
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.selected > 0 {
				m.selected--
			}
		case key.Matches(msg, keys.Down):
			if m.selected < len(m.entries())-1 {
				m.selected++
			}
		case key.Matches(msg, keys.Tab):
			m.pane = 1 - m.pane
			m.selected = 0
		}

	case tea.WindowSizeMsg:
		m.detail.Width = msg.Width - 4
		m.help.Width = msg.Width

	case loadedMsg:
		m.err = msg.err
		m.report = msg.report
	}

	m.detail.SetContent(m.detailText())
	return m, nil
}

func (m *interactiveModel) detailText() string {
	list := m.entries()
	if m.selected >= len(list) {
		return ""
	}
	e := list[m.selected]

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", kindStyle.Render(e.Kind), e.Description)
	fmt.Fprintf(&b, "words  %s\n", wordList(e.Words))
	switch {
	case m.pane == paneRestricted:
	case e.Permitted:
		b.WriteString(okStyle.Render("permitted"))
	default:
		b.WriteString(errorStyle.Render(e.Error))
	}
	if m.pane == paneDeclared {
		b.WriteString("\n\nrestrictions of this kind:\n")
		for _, r := range m.report.Restricted {
			if r.Kind == e.Kind {
				fmt.Fprintf(&b, "  %s\n", r.Description)
			}
		}
	}
	return b.String()
}

func (m *interactiveModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.report == nil {
		return "Loading metadata..."
	}

	r := m.report
	var b strings.Builder
	b.WriteString(titleStyle.Render("NPDM Inspector"))
	fmt.Fprintf(&b, " %s  %s  %s\n", m.path, r.Identity, r.Header.Name)

	if r.Verdict == report.Accepted {
		b.WriteString(okStyle.Render("accepted"))
		if len(r.Flags) > 0 {
			b.WriteString(" " + strings.Join(r.Flags, ", "))
		}
	} else if v := r.Violation; v != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("rejected: %s %s at %d", v.Category, v.Reason, v.Index)))
	}
	b.WriteString("\n\n")

	title := "declared"
	if m.pane == paneRestricted {
		title = "restricted"
	}
	b.WriteString(kindStyle.Render(title) + "\n")
	for i, e := range m.entries() {
		line := fmt.Sprintf("%3d %-18s %s", e.Index, e.Kind, e.Description)
		if m.pane == paneDeclared && !e.Permitted {
			line = errorStyle.Render(line)
		}
		if i == m.selected {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n")
	b.WriteString(detailStyle.Render(m.detail.View()))
	b.WriteString("\n")
	b.WriteString(m.help.View(keys))
	return b.String()
}

func wordList(ws []uint32) string {
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = fmt.Sprintf("%#010x", w)
	}
	return strings.Join(parts, " ")
}

func runTUI(args []string) error {
	var opts loadOptions
	fs := pflag.NewFlagSet("tui", pflag.ContinueOnError)
	opts.addFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("tui takes exactly one PATH")
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("tui needs a terminal; use inspect instead")
	}

	// Logs would corrupt the alternate screen.
	opts.logLevel = "fatal"
	s, err := opts.open(fs, fs.Arg(0))
	if err != nil {
		return err
	}

	p := tea.NewProgram(newInteractiveModel(s, fs.Arg(0)), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
