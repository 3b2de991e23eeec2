// Package tui provides a terminal live view for a running simulation.
//
// The view steps the solver at the display rate, renders the electric
// field magnitude as a character heatmap, and tracks total field energy
// over time in a small chart. It is intentionally coarse; for precise
// analysis use the probe and export commands instead.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/analysis"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/fdtd"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/field"
)

const (
	heatmapWidth  = 64
	heatmapHeight = 28

	historyCapacity = 600
)

// intensity ramp from empty space to peak magnitude
var ramp = []rune(" .:-=+*#%@")

var (
	canvasStyle = lipgloss.NewStyle().
			Padding(1, 2)

	statsStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2).
			Width(44)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(12)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	graphStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("49")).
			MarginTop(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)
)

// TickMsg drives the step/render loop.
type TickMsg time.Time

// Model is the bubbletea model for the live field view.
type Model struct {
	sim      *fdtd.Simulation
	scenario string

	electric *field.Grid
	magnetic *field.Grid

	running       bool
	energyHistory []float64

	stepCount int
	rateStart time.Time
	stepRate  float64

	err error
}

// NewModel creates a live view over an already configured simulation.
// The caller keeps ownership of the simulation and closes it after the
// program exits.
func NewModel(sim *fdtd.Simulation, scenario string) Model {
	return Model{
		sim:           sim,
		scenario:      scenario,
		running:       true,
		energyHistory: make([]float64, 0, historyCapacity),
		rateStart:     time.Now(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case " ":
			m.running = !m.running

		case "i":
			p := m.sim.Params()
			m.sim.InjectSource(0.5, 0.5,
				1/float32(p.Width), 1/float32(p.Height),
				field.Vec3{Z: 1}, false)

		case "r":
			m.sim.Reset()
			m.energyHistory = m.energyHistory[:0]
			m.err = nil
		}

	case TickMsg:
		if m.running {
			m.sim.Step()
			m.stepCount++
		}
		m.refresh()
		return m, tick()
	}

	return m, nil
}

// refresh pulls fresh grid snapshots and updates the derived stats.
func (m *Model) refresh() {
	select {
	case err := <-m.sim.Errors():
		m.err = err
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second/4)
	defer cancel()

	e, err := m.sim.Snapshot(ctx, field.Electric)
	if err != nil {
		m.err = err
		return
	}
	h, err := m.sim.Snapshot(ctx, field.Magnetic)
	if err != nil {
		m.err = err
		return
	}
	m.electric, m.magnetic = e, h

	m.energyHistory = append(m.energyHistory, analysis.FieldEnergy(e, h))
	if len(m.energyHistory) > historyCapacity {
		m.energyHistory = m.energyHistory[1:]
	}

	if elapsed := time.Since(m.rateStart); elapsed >= time.Second {
		m.stepRate = float64(m.stepCount) / elapsed.Seconds()
		m.stepCount = 0
		m.rateStart = time.Now()
	}
}

// heatmap renders |E| downsampled to the fixed view size. Each view
// cell takes the peak magnitude of the grid cells it covers, square
// root scaled so faint ripples stay visible next to the source peak.
func (m Model) heatmap() string {
	if m.electric == nil {
		empty := strings.Repeat(" ", heatmapWidth) + "\n"
		return strings.TrimRight(strings.Repeat(empty, heatmapHeight), "\n")
	}

	g := m.electric
	mags := make([]float64, g.W*g.H)
	peak := 0.0
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			v := g.Vec3At(x, y)
			mag := math.Sqrt(float64(v.X*v.X + v.Y*v.Y + v.Z*v.Z))
			mags[y*g.W+x] = mag
			if mag > peak {
				peak = mag
			}
		}
	}

	var b strings.Builder
	for row := 0; row < heatmapHeight; row++ {
		y0 := row * g.H / heatmapHeight
		y1 := (row + 1) * g.H / heatmapHeight
		if y1 <= y0 {
			y1 = y0 + 1
		}
		for col := 0; col < heatmapWidth; col++ {
			x0 := col * g.W / heatmapWidth
			x1 := (col + 1) * g.W / heatmapWidth
			if x1 <= x0 {
				x1 = x0 + 1
			}

			block := 0.0
			for y := y0; y < y1 && y < g.H; y++ {
				for x := x0; x < x1 && x < g.W; x++ {
					if mag := mags[y*g.W+x]; mag > block {
						block = mag
					}
				}
			}

			idx := 0
			if peak > 0 {
				idx = int(math.Sqrt(block/peak)*float64(len(ramp)-1) + 0.5)
				if idx >= len(ramp) {
					idx = len(ramp) - 1
				}
			}
			b.WriteRune(ramp[idx])
		}
		if row < heatmapHeight-1 {
			b.WriteRune('\n')
		}
	}
	return b.String()
}

func (m Model) View() string {
	canvasView := canvasStyle.Render(m.heatmap())

	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.scenario)))
	if !m.running {
		s.WriteString("  " + pausedStyle.Render("PAUSED"))
	}
	s.WriteString("\n\n")

	p := m.sim.Params()
	energy := 0.0
	if len(m.energyHistory) > 0 {
		energy = m.energyHistory[len(m.energyHistory)-1]
	}

	rows := []struct {
		label string
		value string
	}{
		{"Time", fmt.Sprintf("%.4f s", m.sim.Time())},
		{"Energy", fmt.Sprintf("%.4g", energy)},
		{"Grid", fmt.Sprintf("%d x %d", p.Width, p.Height)},
		{"Boundary", p.Boundary.String()},
		{"Backend", m.sim.Backend()},
		{"Steps/s", fmt.Sprintf("%.0f", m.stepRate)},
	}
	for _, r := range rows {
		s.WriteString(labelStyle.Render(r.label))
		s.WriteString(valueStyle.Render(r.value))
		s.WriteString("\n")
	}

	if len(m.energyHistory) > 1 {
		chart := asciigraph.Plot(m.energyHistory,
			asciigraph.Height(5),
			asciigraph.Width(32),
			asciigraph.Caption("Field energy"),
		)
		s.WriteString(graphStyle.Render(chart))
		s.WriteString("\n")
	}

	if m.err != nil {
		s.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}

	s.WriteString(helpStyle.Render("\n─────────────────────\nSP:Pause I:Inject\nR:Reset  Q:Quit"))

	statsView := statsStyle.Render(s.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsView)
}

// Run drives the live view until the user quits.
func Run(sim *fdtd.Simulation, scenario string) error {
	prog := tea.NewProgram(NewModel(sim, scenario), tea.WithAltScreen())
	_, err := prog.Run()
	return err
}
