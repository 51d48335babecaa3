package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/erquren/xdomain/domain"
	"github.com/erquren/xdomain/luahost"
	"github.com/erquren/xdomain/session"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	domainStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectDomain modelState = iota
	statePromptEval
	statePromptShare
	stateShowResult
)

type interactiveModel struct {
	err      error
	host     *luahost.Host
	control  *luahost.Domain
	domains  []*luahost.Domain
	input    textinput.Model
	result   string
	count    int
	selected int
	state    modelState
}

func newInteractiveModel(count int) *interactiveModel {
	if count < 2 {
		count = 2
	}
	return &interactiveModel{count: count, state: stateSelectDomain}
}

type loadedMsg struct {
	err     error
	host    *luahost.Host
	control *luahost.Domain
	domains []*luahost.Domain
}

type opResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadHost
}

func (m *interactiveModel) loadHost() tea.Msg {
	host := luahost.New()

	// The control domain is the caller side of every session; it is not
	// listed alongside the target domains.
	control, err := host.Spawn("control")
	if err != nil {
		host.Close()
		return loadedMsg{err: err}
	}

	domains := make([]*luahost.Domain, 0, m.count)
	for i := 0; i < m.count; i++ {
		d, err := host.Spawn(fmt.Sprintf("domain-%d", i+1))
		if err != nil {
			host.Close()
			return loadedMsg{err: err}
		}
		domains = append(domains, d)
	}

	return loadedMsg{host: host, control: control, domains: domains}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.host != nil {
				m.host.Close()
			}
			return m, tea.Quit

		case "q":
			if m.state == stateSelectDomain || m.state == stateShowResult {
				if m.host != nil {
					m.host.Close()
				}
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectDomain && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectDomain && m.selected < len(m.domains)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectDomain:
				m.preparePrompt("chunk: ", `x = 1 + 1`)
				m.state = statePromptEval

			case statePromptEval:
				chunk := m.input.Value()
				m.input.Blur()
				return m, func() tea.Msg { return m.evalSelected(chunk) }

			case statePromptShare:
				spec := m.input.Value()
				m.input.Blur()
				return m, func() tea.Msg { return m.shareSelected(spec) }

			case stateShowResult:
				m.state = stateSelectDomain
				m.result = ""
				m.err = nil
			}

		case "s":
			if m.state == stateSelectDomain {
				m.preparePrompt("bindings: ", "k=v,k2=v2")
				m.state = statePromptShare
				return m, nil
			}

		case "g":
			if m.state == stateSelectDomain {
				m.result = m.renderGlobals()
				m.state = stateShowResult
				return m, nil
			}

		case "esc":
			switch m.state {
			case statePromptEval, statePromptShare:
				m.state = stateSelectDomain
			case stateShowResult:
				m.state = stateSelectDomain
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.host = msg.host
		m.control = msg.control
		m.domains = msg.domains

	case opResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == statePromptEval || m.state == statePromptShare {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *interactiveModel) preparePrompt(prompt, placeholder string) {
	ti := textinput.New()
	ti.Prompt = prompt
	ti.Placeholder = placeholder
	ti.Width = 60
	ti.Focus()
	m.input = ti
}

// evalSelected runs chunk in the selected domain inside a session opened
// from the control domain, so a script failure comes back as a proxied
// error rather than a raw interpreter one.
func (m *interactiveModel) evalSelected(chunk string) tea.Msg {
	target := m.domains[m.selected]
	ctx := domain.Activate(context.Background(), m.control.Core())

	s, tctx, err := session.Enter(ctx, m.host.System(), target.Core(), nil)
	if err != nil {
		return opResultMsg{err: err}
	}
	_ = target.Eval(chunk)
	s.Exit(tctx)

	if s.HasCaptured() {
		return opResultMsg{err: s.ApplyCaptured(nil)}
	}
	return opResultMsg{result: m.renderGlobals()}
}

// shareSelected converts the bindings in the control domain and applies
// them into the selected domain's globals.
func (m *interactiveModel) shareSelected(spec string) tea.Msg {
	bindings := parseBindings(spec)
	if len(bindings) == 0 {
		return opResultMsg{err: fmt.Errorf("no bindings in %q", spec)}
	}

	target := m.domains[m.selected]
	ctx := domain.Activate(context.Background(), m.control.Core())

	s, tctx, err := session.Enter(ctx, m.host.System(), target.Core(), bindings)
	if err != nil {
		return opResultMsg{err: err}
	}
	s.Exit(tctx)

	if s.HasCaptured() {
		return opResultMsg{err: s.ApplyCaptured(nil)}
	}
	return opResultMsg{result: fmt.Sprintf("shared %d bindings into %s\n\n%s",
		len(bindings), target.Name(), m.renderGlobals())}
}

func (m *interactiveModel) renderGlobals() string {
	target := m.domains[m.selected]
	globals, err := target.Core().Globals()
	if err != nil {
		return "globals unavailable: " + err.Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Globals of %s:\n", target.Name())
	for _, name := range globals.Names() {
		if name == "_VERSION" {
			continue
		}
		v, _ := globals.Get(name)
		fmt.Fprintf(&b, "  %s = %s\n", name, valueStyle.Render(fmt.Sprintf("%v", v)))
	}
	return b.String()
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if len(m.domains) == 0 {
		return "Spawning domains..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Domain Runner"))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectDomain:
		b.WriteString("Select a target domain:\n\n")
		for i, d := range m.domains {
			cursor := "  "
			line := domainStyle.Render(d.Name())
			if d.Core().MainClaimed() {
				line += " (claimed)"
			}
			if i == m.selected {
				cursor = "> "
				b.WriteString(selectedStyle.Render(cursor + d.Name()))
			} else {
				b.WriteString(cursor + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter eval • s share • g globals • q quit"))

	case statePromptEval:
		target := m.domains[m.selected]
		b.WriteString(fmt.Sprintf("Eval in %s\n\n", domainStyle.Render(target.Name())))
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter run • esc back"))

	case statePromptShare:
		target := m.domains[m.selected]
		b.WriteString(fmt.Sprintf("Share into %s\n\n", domainStyle.Render(target.Name())))
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter share • esc back"))

	case stateShowResult:
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func runInteractive(count int) error {
	p := tea.NewProgram(newInteractiveModel(count), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
