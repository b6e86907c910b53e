package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/smarteating/tray/internal/anim"
	"github.com/smarteating/tray/internal/app"
	"github.com/smarteating/tray/internal/logtail"
	"github.com/smarteating/tray/internal/prefs"
	"github.com/smarteating/tray/internal/qr"
)

// PlateController is the part of app.Controller the screen drives.
type PlateController interface {
	Snapshot() app.View
	Subscribe() <-chan app.View
	Refetch()
}

// Visibility receives terminal focus changes.
type Visibility interface {
	SetVisible(visible bool)
}

// Camera is the QR scanner's operator controls. *qr.Scanner implements it.
type Camera interface {
	Status() qr.Status
	Open(ctx context.Context) error
	Close()
	RequestPermission(ctx context.Context) error
}

// Options configures the UI.
type Options struct {
	Context    context.Context
	Controller PlateController
	Visibility Visibility
	Camera     Camera // nil hides camera controls
	LogPath    string
	Prefs      prefs.Prefs
	PrefsPath  string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx        context.Context
	controller PlateController
	visibility Visibility
	camera     Camera
	views      <-chan app.View
	logPath    string
	prefsPath  string
	keys       keyMap

	// UI state
	theme      Theme
	width      int
	height     int
	ready      bool
	showHelp   bool
	showLogs   bool
	showMacros bool
	notice     string
	now        time.Time

	// Data state
	view      app.View
	spinner   spinner.Model
	calories  *anim.Counter
	macros    [3]*anim.Counter // protein, carbs, fat grams
	animating bool

	// Logs state
	logViewport viewport.Model
	logEntries  []logtail.Entry
	logErr      error
}

// New creates the kiosk model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	spin := spinner.New(spinner.WithSpinner(spinner.Dot))

	m := Model{
		ctx:        ctx,
		controller: opts.Controller,
		visibility: opts.Visibility,
		camera:     opts.Camera,
		logPath:    opts.LogPath,
		prefsPath:  prefsPath,
		keys:       DefaultKeyMap(),
		theme:      GetTheme(opts.Prefs.Theme),
		showMacros: opts.Prefs.ShowMacros,
		now:        time.Now(),
		spinner:    spin,
		calories:   anim.NewCounter(0, anim.CalorieDuration),
	}
	for i := range m.macros {
		m.macros[i] = anim.NewCounter(0, anim.MacroDuration)
	}
	if m.controller != nil {
		m.views = m.controller.Subscribe()
		m.view = m.controller.Snapshot()
	}
	m.retarget(time.Now())
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		clockCmd(),
		waitForView(m.ctx, m.views),
		frameCmd(),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.logViewport = viewport.New(m.width-4, m.height-6)
		}
		m.ready = true
		m.resizeLogViewport()
		return m, nil

	case tea.FocusMsg:
		if m.visibility != nil {
			m.visibility.SetVisible(true)
		}
		return m, nil

	case tea.BlurMsg:
		if m.visibility != nil {
			m.visibility.SetVisible(false)
		}
		return m, nil

	case viewMsg:
		m.view = app.View(msg)
		now := time.Now()
		m.retarget(now)
		cmds := []tea.Cmd{waitForView(m.ctx, m.views)}
		if !m.animating && !m.countersDone(now) {
			m.animating = true
			cmds = append(cmds, frameCmd())
		}
		return m, tea.Batch(cmds...)

	case frameMsg:
		m.now = time.Time(msg)
		if m.countersDone(m.now) {
			m.animating = false
			return m, nil
		}
		m.animating = true
		return m, frameCmd()

	case clockMsg:
		m.now = time.Time(msg)
		cmds := []tea.Cmd{clockCmd()}
		if m.showLogs {
			cmds = append(cmds, loadLogsCmd(m.logPath))
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case logsMsg:
		m.handleLogs(msg)
		return m, nil

	case cameraMsg:
		m.notice = msg.notice()
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Carregando..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	if m.showLogs {
		b.WriteString(m.renderLogs())
	} else {
		b.WriteString(m.renderPlate())
	}
	return b.String()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.savePrefs()
		return m, nil

	case key.Matches(msg, m.keys.ToggleMacros):
		m.showMacros = !m.showMacros
		m.savePrefs()
		return m, nil

	case key.Matches(msg, m.keys.Refetch):
		if m.controller != nil {
			m.controller.Refetch()
		}
		return m, nil

	case key.Matches(msg, m.keys.ToggleLogs):
		m.showLogs = !m.showLogs
		if m.showLogs {
			return m, loadLogsCmd(m.logPath)
		}
		return m, nil

	case key.Matches(msg, m.keys.ToggleCamera):
		if m.camera == nil {
			m.notice = "Nenhuma câmera configurada"
			return m, nil
		}
		return m, toggleCameraCmd(m.ctx, m.camera)

	case key.Matches(msg, m.keys.RetryCamera):
		if m.camera == nil {
			m.notice = "Nenhuma câmera configurada"
			return m, nil
		}
		return m, requestPermissionCmd(m.ctx, m.camera)
	}

	if m.showLogs {
		return m.handleLogsKey(msg)
	}
	return m, nil
}

func (m Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	_ = prefs.Save(m.prefsPath, prefs.Prefs{Theme: m.theme.Name, ShowMacros: m.showMacros})
}

// retarget points the animated counters at the current view.
func (m *Model) retarget(now time.Time) {
	m.calories.SetTarget(float64(m.view.Calories), now)
	for i, macro := range m.view.Macros.All() {
		m.macros[i].SetTarget(macro.Grams, now)
	}
}

func (m Model) countersDone(now time.Time) bool {
	if !m.calories.Done(now) {
		return false
	}
	for _, c := range m.macros {
		if !c.Done(now) {
			return false
		}
	}
	return true
}

// Messages

type viewMsg app.View

type clockMsg time.Time

type frameMsg time.Time

type cameraMsg struct {
	opened bool
	closed bool
	err    error
}

func (c cameraMsg) notice() string {
	switch {
	case errors.Is(c.err, qr.ErrPermissionDenied):
		return "Permissão da câmera negada"
	case c.err != nil:
		return "Câmera: " + c.err.Error()
	case c.opened:
		return "Câmera ligada"
	case c.closed:
		return "Câmera desligada"
	default:
		return "Permissão da câmera concedida"
	}
}

// Commands

func waitForView(ctx context.Context, views <-chan app.View) tea.Cmd {
	if views == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case v := <-views:
			return viewMsg(v)
		}
	}
}

func clockCmd() tea.Cmd {
	return tea.Tick(ClockInterval, func(t time.Time) tea.Msg {
		return clockMsg(t)
	})
}

func frameCmd() tea.Cmd {
	return tea.Tick(FrameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func toggleCameraCmd(ctx context.Context, camera Camera) tea.Cmd {
	return func() tea.Msg {
		if camera.Status() == qr.StatusScanning {
			camera.Close()
			return cameraMsg{closed: true}
		}
		if err := camera.Open(ctx); err != nil {
			return cameraMsg{err: err}
		}
		return cameraMsg{opened: true}
	}
}

func requestPermissionCmd(ctx context.Context, camera Camera) tea.Cmd {
	return func() tea.Msg {
		return cameraMsg{err: camera.RequestPermission(ctx)}
	}
}

// Run starts the Bubble Tea program and blocks until the operator quits or
// opts.Context ends.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
