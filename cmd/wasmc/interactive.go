package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasmc/wasmc"
	"github.com/wippyai/wasmc/internal/bytecode"
)

// This mirrors cmd/run/interactive.go's Model/Update/View shape and its
// lipgloss palette, but browses a compiled function's instruction trace and
// its locals' packed offsets instead of calling exported component functions — there
// is nothing here to instantiate or call, only bytecode already sitting in
// memory to page through.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	liveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectFunc modelState = iota
	stateBrowseCode
	stateBrowseLocals
)

type interactiveModel struct {
	filename string
	mod      *wasmc.Module
	state    modelState
	selected int // index into mod.Functions
	cursor   int // index into the current function's Code or Locals
}

func newInteractiveModel(filename string, mod *wasmc.Module) *interactiveModel {
	return &interactiveModel{filename: filename, mod: mod, state: stateSelectFunc}
}

func (m *interactiveModel) Init() tea.Cmd { return nil }

func (m *interactiveModel) current() *bytecode.Function {
	if m.selected < 0 || m.selected >= len(m.mod.Functions) {
		return nil
	}
	return m.mod.Functions[m.selected].Function
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		m.cursor++
		m.clampCursor()

	case "enter":
		if m.state == stateSelectFunc {
			m.state = stateBrowseCode
			m.cursor = 0
		}

	case "tab":
		if m.state == stateBrowseCode {
			m.state = stateBrowseLocals
			m.cursor = 0
		} else if m.state == stateBrowseLocals {
			m.state = stateBrowseCode
			m.cursor = 0
		}

	case "esc":
		if m.state != stateSelectFunc {
			m.state = stateSelectFunc
			m.cursor = 0
		}
	}

	if m.state == stateSelectFunc {
		if m.cursor >= len(m.mod.Functions) {
			m.cursor = len(m.mod.Functions) - 1
		}
		m.selected = m.cursor
	}

	return m, nil
}

func (m *interactiveModel) clampCursor() {
	fn := m.current()
	if fn == nil {
		m.cursor = 0
		return
	}
	limit := 0
	switch m.state {
	case stateSelectFunc:
		limit = len(m.mod.Functions) - 1
	case stateBrowseCode:
		limit = len(fn.Code) - 1
	case stateBrowseLocals:
		limit = len(fn.Locals) - 1
	}
	if limit < 0 {
		limit = 0
	}
	if m.cursor > limit {
		m.cursor = limit
	}
}

func (m *interactiveModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("wasmc"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		if len(m.mod.Functions) == 0 {
			b.WriteString("No functions compiled.\n")
			break
		}
		b.WriteString("Select a function:\n\n")
		for i, fn := range m.mod.Functions {
			line := fmt.Sprintf("%-24s frame=%d watermark=%d", fn.Name, fn.FrameSize, fn.RequiredStackSize)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter browse • q quit"))

	case stateBrowseCode:
		fn := m.current()
		b.WriteString(fmt.Sprintf("%s: instructions\n\n", funcStyle.Render(fn.Name)))
		for i, ins := range fn.Code {
			line := fmt.Sprintf("%4d  %s", i, describeInstruction(ins))
			if i == m.cursor {
				b.WriteString(selectedStyle.Render(line))
			} else {
				b.WriteString(line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ move • tab locals • esc back • q quit"))

	case stateBrowseLocals:
		fn := m.current()
		b.WriteString(fmt.Sprintf("%s: locals (packed offsets)\n\n", funcStyle.Render(fn.Name)))
		for i, slot := range fn.Locals {
			marker := ""
			if slot.NeedsInit {
				marker = " needs-init"
			}
			line := fmt.Sprintf("%4d  %-10s offset=%-4d%s", i, typeStyle.Render(slot.Kind.String()), slot.Offset, marker)
			if i == m.cursor {
				b.WriteString(selectedStyle.Render(line))
			} else {
				b.WriteString(liveStyle.Render(line))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ move • tab instructions • esc back • q quit"))
	}

	return b.String()
}

func describeInstruction(ins bytecode.Instruction) string {
	srcs := make([]string, 0, ins.NumSrc)
	for i := 0; i < int(ins.NumSrc); i++ {
		srcs = append(srcs, fmt.Sprintf("%d", ins.Src[i]))
	}
	return fmt.Sprintf("op=%-3d wasm=%#02x dst=%-5d src=[%s] kind=%s",
		ins.Op, ins.WasmOp, ins.Dst, strings.Join(srcs, ","), ins.Kind)
}

func runInteractive(filename string, mod *wasmc.Module) error {
	p := tea.NewProgram(newInteractiveModel(filename, mod), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
