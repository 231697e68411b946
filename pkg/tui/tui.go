// Package tui provides a terminal user interface for scoregrid
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/james-see/scoregrid/pkg/converter"
)

// Ink-on-paper colors
var (
	ink      = lipgloss.Color("#F5F1E6")
	accent   = lipgloss.Color("#E0B040")
	muted    = lipgloss.Color("#9A9A9A")
	staffbar = lipgloss.Color("#2B2B3A")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ink).
			Background(staffbar).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(muted).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(ink).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(accent).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E05050")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)

	previewStyle = lipgloss.NewStyle().
			Foreground(muted).
			PaddingLeft(2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 2)
)

// previewLines is how much of a kern result the result screen shows.
const previewLines = 8

// State represents the current TUI state
type State int

const (
	StateMenu State = iota
	StateFilePicker
	StateConverting
	StateResult
)

// MenuItem represents a menu option
type MenuItem struct {
	Title       string
	Description string
	From        converter.Format
	To          converter.Format
}

var menuItems = []MenuItem{
	{Title: "MusicXML → kern", Description: "Write a Humdrum kern grid from a MusicXML score", From: converter.FormatMusicXML, To: converter.FormatKern},
	{Title: "MIDI → kern", Description: "Split MIDI tracks into kern measures, voices and tied notes", From: converter.FormatMIDI, To: converter.FormatKern},
	{Title: "MusicXML → layout", Description: "Compute systems and column positions as JSON", From: converter.FormatMusicXML, To: converter.FormatLayout},
	{Title: "MIDI → layout", Description: "Lay out a MIDI file as JSON", From: converter.FormatMIDI, To: converter.FormatLayout},
	{Title: "Exit", Description: "Exit the application"},
}

var extensions = map[converter.Format][]string{
	converter.FormatMusicXML: {".xml", ".musicxml"},
	converter.FormatMIDI:     {".mid", ".midi"},
	converter.FormatKern:     {".krn"},
	converter.FormatLayout:   {".json"},
}

// Model represents the TUI model
type Model struct {
	opts         converter.Options
	state        State
	menuIndex    int
	filePicker   filepicker.Model
	spinner      spinner.Model
	selectedFile string
	outputFile   string
	preview      []string
	conversion   MenuItem
	err          error
	width        int
	height       int
}

// conversionDoneMsg signals conversion completion
type conversionDoneMsg struct {
	outputFile string
	preview    []string
	err        error
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick)
}

// New creates a TUI model converting with opts.
func New(opts converter.Options) Model {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".xml", ".musicxml", ".mid", ".midi"}
	fp.CurrentDirectory, _ = os.Getwd()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accent)

	return Model{
		opts:       opts,
		state:      StateMenu,
		filePicker: fp,
		spinner:    s,
	}
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// The file picker needs every message while it is open.
	if m.state == StateFilePicker {
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				m.state = StateMenu
				return m, nil
			case "q", "ctrl+c":
				return m, tea.Quit
			}
		}

		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			m.selectedFile = path
			m.state = StateConverting
			return m, tea.Batch(m.spinner.Tick, m.performConversion())
		}

		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filePicker.Height = msg.Height - 10
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case StateMenu:
			return m.updateMenu(msg)
		case StateResult:
			return m.updateResult(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case conversionDoneMsg:
		m.state = StateResult
		m.outputFile = msg.outputFile
		m.preview = msg.preview
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case "down", "j":
		if m.menuIndex < len(menuItems)-1 {
			m.menuIndex++
		}
	case "enter":
		if m.menuIndex == len(menuItems)-1 {
			return m, tea.Quit
		}
		m.conversion = menuItems[m.menuIndex]
		m.state = StateFilePicker
		m.filePicker.AllowedTypes = extensions[m.conversion.From]
		return m, m.filePicker.Init()
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.state = StateMenu
		m.err = nil
		m.selectedFile = ""
		m.outputFile = ""
		m.preview = nil
		return m, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) performConversion() tea.Cmd {
	in, item, opts := m.selectedFile, m.conversion, m.opts
	return func() tea.Msg {
		return convert(in, item, opts)
	}
}

// convert writes the result next to the input, with the output extension.
func convert(in string, item MenuItem, opts converter.Options) conversionDoneMsg {
	data, err := os.ReadFile(in)
	if err != nil {
		return conversionDoneMsg{err: err}
	}
	result, err := converter.New(opts).Convert(context.Background(), data, item.From, item.To)
	if err != nil {
		return conversionDoneMsg{err: err}
	}

	out := strings.TrimSuffix(in, filepath.Ext(in)) + extensions[item.To][0]
	if err := os.WriteFile(out, result, 0o644); err != nil {
		return conversionDoneMsg{err: err}
	}

	var preview []string
	if item.To == converter.FormatKern {
		preview = strings.SplitN(string(result), "\n", previewLines+1)
		if len(preview) > previewLines {
			preview[previewLines] = "…"
		}
	}
	return conversionDoneMsg{outputFile: out, preview: preview}
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(logo())
	s.WriteString("\n")

	switch m.state {
	case StateMenu:
		s.WriteString(m.viewMenu())
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	case StateConverting:
		s.WriteString(m.viewConverting())
	case StateResult:
		s.WriteString(m.viewResult())
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: navigate • enter: select • q: quit"))

	return s.String()
}

func (m Model) viewMenu() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" SELECT CONVERSION "))
	s.WriteString("\n\n")

	for i, item := range menuItems {
		if i == m.menuIndex {
			s.WriteString(selectedStyle.Render(fmt.Sprintf("▸ %s", item.Title)))
			s.WriteString("\n")
			s.WriteString(lipgloss.NewStyle().Foreground(accent).PaddingLeft(4).Render(item.Description))
		} else {
			s.WriteString(menuStyle.Render(fmt.Sprintf("  %s", item.Title)))
		}
		s.WriteString("\n")
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf(" SELECT %s FILE ", strings.ToUpper(string(m.conversion.From)))))
	s.WriteString("\n\n")
	s.WriteString(m.filePicker.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("esc: back to menu"))

	return s.String()
}

func (m Model) viewConverting() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" CONVERTING "))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("%s Converting %s...\n", m.spinner.View(), filepath.Base(m.selectedFile)))
	s.WriteString(statusStyle.Render(fmt.Sprintf("  %s → %s", m.conversion.From, m.conversion.To)))

	return boxStyle.Render(s.String())
}

func (m Model) viewResult() string {
	var s strings.Builder

	if m.err != nil {
		s.WriteString(titleStyle.Render(" ERROR "))
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ Conversion failed: %s", m.err.Error())))
	} else {
		s.WriteString(titleStyle.Render(" SUCCESS "))
		s.WriteString("\n\n")
		s.WriteString(successStyle.Render("✓ Conversion complete!"))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("Input:  %s\n", filepath.Base(m.selectedFile)))
		s.WriteString(fmt.Sprintf("Output: %s", filepath.Base(m.outputFile)))
		if len(m.preview) > 0 {
			s.WriteString("\n\n")
			s.WriteString(previewStyle.Render(strings.Join(m.preview, "\n")))
		}
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Press enter to continue"))

	return boxStyle.Render(s.String())
}

func logo() string {
	return lipgloss.NewStyle().Foreground(ink).Bold(true).Render(`
  ═══╤═══════╤═══════╤═══  s c o r e g r i d
  ═══╪═══════╪═══════╪═══
  ═══╧═══════╧═══════╧═══
`)
}

// Run starts the TUI application
func Run(opts converter.Options) error {
	p := tea.NewProgram(New(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
