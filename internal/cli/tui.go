package cli

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"

	"tube-transcriber/internal/domain"
	"tube-transcriber/internal/report"
	"tube-transcriber/internal/service"
)

// maxLogLines is how many recent progress lines the view keeps.
const maxLogLines = 8

// lineMsg carries one progress line.
type lineMsg string

// stageMsg carries one item stage transition.
type stageMsg struct {
	index int
	stage domain.ItemStage
}

// doneMsg carries the finished run.
type doneMsg struct {
	res service.Result
	err error
}

// programSink forwards progress lines into the running program.
type programSink struct {
	p *tea.Program
}

func (s programSink) Notify(message string) {
	s.p.Send(lineMsg(message))
}

// programObserver forwards stage transitions into the running program.
type programObserver struct {
	p *tea.Program
}

func (o programObserver) ItemStage(_ string, index int, _ domain.VideoReference, stage domain.ItemStage) {
	o.p.Send(stageMsg{index: index, stage: stage})
}

// batchModel is the bubbletea model for a running batch.
type batchModel struct {
	progress   progress.Model
	theme      Theme
	cancel     context.CancelFunc
	total      int
	finished   int
	failed     int
	current    string
	lines      []string
	cancelling bool
	done       bool
	res        service.Result
	err        error
}

func newBatchModel(cancel context.CancelFunc) batchModel {
	return batchModel{
		progress: progress.New(
			progress.WithDefaultBlend(),
			progress.WithWidth(40),
		),
		theme:  defaultTheme,
		cancel: cancel,
	}
}

func newBatchProgram(cancel context.CancelFunc) *tea.Program {
	return tea.NewProgram(newBatchModel(cancel))
}

func (m batchModel) Init() tea.Cmd {
	return m.progress.Init()
}

func (m batchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if !m.cancelling {
				m.cancelling = true
				if m.cancel != nil {
					m.cancel()
				}
			}
		}
		return m, nil

	case lineMsg:
		line := string(msg)
		if strings.HasPrefix(line, "[") {
			m.current = line
		}
		if strings.TrimSpace(line) != "" {
			m.lines = append(m.lines, line)
			if len(m.lines) > maxLogLines {
				m.lines = m.lines[len(m.lines)-maxLogLines:]
			}
		}
		return m, nil

	case stageMsg:
		switch msg.stage {
		case domain.ItemStagePending:
			if msg.index > m.total {
				m.total = msg.index
			}
		case domain.ItemStageSucceeded:
			m.finished++
		case domain.ItemStageFailed:
			m.finished++
			m.failed++
		}
		return m, nil

	case doneMsg:
		m.done = true
		m.res = msg.res
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m batchModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m batchModel) percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.finished) / float64(m.total)
}

func (m batchModel) renderContent() string {
	if m.done {
		if m.err != nil {
			return m.theme.errorStyle().Render(fmt.Sprintf("✗ %s", m.err)) + "\n"
		}
		return m.theme.successStyle().Render("✓ "+report.Headline(m.res.Report)) + "\n"
	}

	var b strings.Builder
	status := m.theme.statusStyle().Render("[running]")
	if m.cancelling {
		status = m.theme.warningStyle().Render("[cancelling]")
	}
	counts := fmt.Sprintf("%d/%d videos", m.finished, m.total)
	if m.failed > 0 {
		counts += m.theme.errorStyle().Render(fmt.Sprintf(" (%d failed)", m.failed))
	}
	fmt.Fprintf(&b, "%s %s %s\n", status, m.progress.ViewAs(m.percent()), counts)
	if m.current != "" {
		b.WriteString(m.current + "\n")
	}
	b.WriteString("\n")
	for _, line := range m.lines {
		b.WriteString("  " + line + "\n")
	}
	b.WriteString(m.theme.hintStyle().Render("Press Ctrl+C to cancel the batch") + "\n")
	return b.String()
}
