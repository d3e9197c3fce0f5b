// Package tui shows a running simulation in the terminal with bubbletea.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/stepsol/internal/sim"
	"github.com/san-kum/stepsol/internal/viz"
)

const (
	barWidth   = 40
	historyLen = 60
)

type (
	stepMsg sim.StepInfo
	failMsg struct {
		step int
		t    float64
		err  error
	}
	doneMsg struct{ err error }
)

type sender interface {
	Send(msg tea.Msg)
}

// Progress forwards simulator steps to the program. It is a
// sim.FailureObserver.
type Progress struct {
	p sender
}

var _ sim.FailureObserver = (*Progress)(nil)

func (p *Progress) OnStep(info sim.StepInfo) {
	info.X = info.X.Clone()
	p.p.Send(stepMsg(info))
}

func (p *Progress) OnFailure(step int, t float64, err error) {
	p.p.Send(failMsg{step: step, t: t, err: err})
}

type model struct {
	title  string
	steps  int
	cancel context.CancelFunc

	step    int
	t       float64
	iters   []float64
	lastErr float64
	x0      float64
	failure string
	done    bool
}

func newModel(title string, steps int, cancel context.CancelFunc) model {
	return model{title: title, steps: steps, cancel: cancel}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case stepMsg:
		m.step = msg.Step
		m.t = msg.Time
		m.lastErr = msg.Stats.Err
		if len(msg.X) > 0 {
			m.x0 = msg.X[0]
		}
		m.iters = append(m.iters, float64(msg.Stats.Iters))
		if len(m.iters) > historyLen {
			m.iters = m.iters[1:]
		}
	case failMsg:
		m.failure = fmt.Sprintf("step %d at t=%g: %v", msg.step, msg.t, msg.err)
	case doneMsg:
		m.done = true
		if msg.err != nil && m.failure == "" {
			m.failure = msg.err.Error()
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(viz.Title.Render(m.title))
	b.WriteString("\n\n")

	pct := 0.0
	if m.steps > 0 {
		pct = float64(m.step) / float64(m.steps)
	}
	fmt.Fprintf(&b, "%s %3.0f%%\n\n", viz.ProgressBar(pct, barWidth), 100*pct)

	row := func(label, value string) {
		b.WriteString(viz.MetricLabel.Render(fmt.Sprintf("%-12s", label)))
		b.WriteString(viz.MetricValue.Render(value))
		b.WriteByte('\n')
	}
	row("step", fmt.Sprintf("%d/%d", m.step, m.steps))
	row("time", fmt.Sprintf("%.4f", m.t))
	row("x0", fmt.Sprintf("%.6g", m.x0))
	row("residual", fmt.Sprintf("%.3e", m.lastErr))
	row("iterations", viz.Sparkline(m.iters, historyLen))

	b.WriteByte('\n')
	switch {
	case m.failure != "":
		b.WriteString(viz.StatusFailed.Render("failed: " + m.failure))
	case m.done:
		b.WriteString(viz.StatusRunning.Render("done"))
	default:
		b.WriteString(viz.StatusRunning.Render("running") + viz.Subtle.Render("  q to stop"))
	}
	b.WriteByte('\n')
	return b.String()
}

// Run shows progress while run executes. run must report steps to the
// observer it is given; quitting the program cancels its context.
func Run(ctx context.Context, title string, steps int, run func(ctx context.Context, obs sim.Observer) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newModel(title, steps, cancel))
	errc := make(chan error, 1)
	go func() {
		err := run(ctx, &Progress{p: p})
		errc <- err
		p.Send(doneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-errc
		return err
	}
	cancel()
	return <-errc
}
