// Package tui provides a Bubble Tea terminal user interface for pixiv-spider.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mashiro/pixiv-spider/internal/config"
	"github.com/mashiro/pixiv-spider/internal/download"
	pshttp "github.com/mashiro/pixiv-spider/internal/http"
	"github.com/mashiro/pixiv-spider/internal/model"
	"github.com/mashiro/pixiv-spider/internal/pixiv"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#0096FA")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#0096FA")).
			Padding(1, 2)

	workStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateFetching
	StateDownloading
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   download.ProgressLevel
}

// eventBuffer collects progress events from pool workers for the UI
// to drain on its own tick.
type eventBuffer struct {
	mu     sync.Mutex
	events []download.ProgressEvent
}

func (b *eventBuffer) add(e download.ProgressEvent) {
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
}

func (b *eventBuffer) drain() []download.ProgressEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	events := b.events
	b.events = nil
	return events
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  *config.Settings
	logs      []LogEntry
	works     []string
	err       error

	// Download context
	ctx    context.Context
	cancel context.CancelFunc

	manager *download.Manager
	events  *eventBuffer
	results []download.ItemResult

	// Download progress
	totalFiles      int32
	downloadedFiles int32
	receivedBytes   int64
	totalBytes      int64

	// Options
	bookmarks bool
	verbose   bool

	width  int
	height int
}

// NewModel creates a new TUI model.
func NewModel() Model {
	ti := textinput.New()
	ti.Placeholder = "pixiv user ID, e.g. 660788"
	ti.Focus()
	ti.CharLimit = 20
	ti.Width = 40

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#0096FA"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		settings:  config.DefaultSettings(),
		logs:      make([]LogEntry, 0),
		events:    &eventBuffer{},
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// FetchDoneMsg is sent when the fetch has completed and all
	// downloads have been submitted.
	FetchDoneMsg struct {
		Works   []string
		Manager *download.Manager
		Results []download.ItemResult
		Err     error
	}

	// DownloadDoneMsg is sent when every submitted page has settled.
	DownloadDoneMsg struct {
		Received int64
		Files    int32
		TotalF   int32
		Failed   int
		Err      error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			if m.manager != nil {
				m.manager.Shutdown(false)
			}
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateDownloading || m.state == StateFetching {
				m.cancel()
				if m.manager != nil {
					m.manager.Shutdown(false)
				}
				m.state = StateError
				m.err = fmt.Errorf("cancelled by user")
			}

		case "enter":
			if m.state == StateInput && m.textInput.Value() != "" {
				m.state = StateFetching
				return m, tea.Batch(m.startFetch(), m.spinner.Tick, m.tickProgress())
			}

		case "b":
			if m.state == StateInput {
				m.bookmarks = !m.bookmarks
			}

		case "v":
			if m.state == StateInput {
				m.verbose = !m.verbose
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				// Reset for a new run
				m.state = StateInput
				m.logs = nil
				m.works = nil
				m.results = nil
				m.err = nil
				m.downloadedFiles = 0
				m.totalFiles = 0
				m.receivedBytes = 0
				m.totalBytes = 0
				m.manager = nil
				m.events = &eventBuffer{}
				m.ctx, m.cancel = context.WithCancel(context.Background())
				m.textInput.SetValue("")
				m.textInput.Focus()
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case FetchDoneMsg:
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
		} else if m.ctx.Err() != nil {
			// Cancelled while the fetch was in flight; the manager was
			// created by the fetch command and is not on the model yet.
			msg.Manager.Shutdown(false)
			m.state = StateError
			m.err = fmt.Errorf("cancelled by user")
		} else {
			m.works = msg.Works
			m.manager = msg.Manager
			m.results = msg.Results
			m.state = StateDownloading
			cmds = append(cmds, m.awaitDownloads(), m.tickProgress())
		}

	case DownloadDoneMsg:
		m.receivedBytes = msg.Received
		m.downloadedFiles = msg.Files
		m.totalFiles = msg.TotalF
		if msg.Err != nil && m.ctx.Err() == nil {
			m.state = StateError
			m.err = msg.Err
		} else if m.ctx.Err() != nil {
			m.state = StateError
			m.err = fmt.Errorf("cancelled by user")
		} else {
			m.state = StateComplete
			if msg.Failed > 0 {
				m.logs = append(m.logs, LogEntry{
					Message: fmt.Sprintf("%d page(s) failed", msg.Failed),
					Level:   download.LevelWarning,
				})
			}
		}

	case TickMsg:
		// Drain worker events into the log pane.
		for _, e := range m.events.drain() {
			if e.Level == download.LevelVerbose && !m.verbose {
				continue
			}
			m.logs = append(m.logs, LogEntry{Message: e.Message, Level: e.Level})
		}
		if len(m.logs) > 10 {
			m.logs = m.logs[len(m.logs)-10:]
		}

		if m.manager != nil && m.state == StateDownloading {
			received, total, files, totalFiles := m.manager.GetProgress()
			m.receivedBytes = received
			m.totalBytes = total
			m.downloadedFiles = files
			m.totalFiles = totalFiles

			var percent float64
			if totalFiles > 0 {
				percent = float64(files) / float64(totalFiles)
			}
			cmds = append(cmds, m.progress.SetPercent(percent))
		}
		if m.state == StateFetching || m.state == StateDownloading {
			cmds = append(cmds, m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	// Update text input
	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("🎨 pixiv-spider"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Download illustrations from pixiv"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateFetching:
		b.WriteString(m.viewFetching())
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Enter pixiv user ID:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	bookmarksCheck := "[ ]"
	if m.bookmarks {
		bookmarksCheck = "[×]"
	}
	verboseCheck := "[ ]"
	if m.verbose {
		verboseCheck = "[×]"
	}

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Download bookmarks instead of works (b)\n", bookmarksCheck))
	b.WriteString(fmt.Sprintf("  %s Verbose/debug output (v)\n", verboseCheck))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Download path: %s", m.settings.DownloadsPath)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewFetching() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Fetching works..."))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	if len(m.works) > 0 {
		b.WriteString(successStyle.Render(fmt.Sprintf("Found %d work(s):", len(m.works))))
		b.WriteString("\n")
		shown := m.works
		if len(shown) > 5 {
			shown = shown[:5]
		}
		for _, work := range shown {
			b.WriteString(workStyle.Render(fmt.Sprintf("  ◆ %s", work)))
			b.WriteString("\n")
		}
		if len(m.works) > 5 {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  ... and %d more", len(m.works)-5)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	var percent float64
	if m.totalFiles > 0 {
		percent = float64(m.downloadedFiles) / float64(m.totalFiles)
	}
	b.WriteString(m.progress.ViewAs(percent))
	b.WriteString("\n")

	downloaded := fmt.Sprintf("%.2f MB", float64(m.receivedBytes)/1024/1024)
	if m.totalBytes > 0 {
		downloaded = fmt.Sprintf("%.2f / %.2f MB",
			float64(m.receivedBytes)/1024/1024,
			float64(m.totalBytes)/1024/1024)
	}
	b.WriteString(infoStyle.Render(fmt.Sprintf(
		"Pages: %d/%d | Downloaded: %s",
		m.downloadedFiles,
		m.totalFiles,
		downloaded,
	)))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	var b strings.Builder

	box := boxStyle.Render(fmt.Sprintf(
		"✨ Download Complete!\n\n"+
			"Works: %d\n"+
			"Pages: %d\n"+
			"Size: %.2f MB",
		len(m.works),
		m.downloadedFiles,
		float64(m.receivedBytes)/1024/1024,
	))
	b.WriteString(box)

	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("✗ Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case download.LevelError:
			style = errorStyle
			prefix = "✗"
		case download.LevelWarning:
			style = warningStyle
			prefix = "!"
		case download.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case download.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • b: bookmarks • v: verbose • esc: quit"
	case StateFetching, StateDownloading:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new download • q: quit"
	}
	return ""
}

// startFetch runs the retrying fetch and download fan-out.
func (m *Model) startFetch() tea.Cmd {
	events := m.events
	ctx := m.ctx
	settings := m.settings
	bookmarks := m.bookmarks
	input := m.textInput.Value()

	return func() tea.Msg {
		userID, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
		if err != nil {
			return FetchDoneMsg{Err: fmt.Errorf("invalid user ID %q", input)}
		}

		client := pixiv.NewClient(pshttp.NewClient(settings.AccessToken))

		var call *download.Call
		if bookmarks {
			call = download.NewCall("UserBookmarks", func(ctx context.Context) ([]model.Illust, error) {
				return client.UserBookmarks(ctx, userID)
			}, download.Pos(userID))
		} else {
			call = download.NewCall("UserIllusts", func(ctx context.Context) ([]model.Illust, error) {
				return client.UserIllusts(ctx, userID)
			}, download.Pos(userID))
		}

		manager := download.NewManager(settings, events.add)

		results, err := manager.FetchAndDownload(ctx, download.FetchRequest{
			Fetch:         call,
			MaxTries:      settings.FetchMaxTries,
			RetryCooldown: settings.FetchRetryCooldown,
			RetryExponent: settings.FetchRetryExponent,
		}).Wait()
		if err != nil {
			manager.Shutdown(false)
			return FetchDoneMsg{Err: err}
		}

		works := make([]string, len(results))
		for i, item := range results {
			works[i] = fmt.Sprintf("%s - %s (%d page(s))", item.Illust.UserName, item.Illust.Title, item.Illust.PageCount())
		}

		return FetchDoneMsg{
			Works:   works,
			Manager: manager,
			Results: results,
		}
	}
}

// awaitDownloads waits for every page future in the background.
func (m *Model) awaitDownloads() tea.Cmd {
	manager := m.manager
	results := m.results

	return func() tea.Msg {
		failed := 0
		for _, item := range results {
			pages, err := item.Download.Wait()
			if err != nil {
				failed++
				continue
			}
			for _, page := range pages {
				if _, err := page.Done.Wait(); err != nil {
					failed++
				}
			}
		}

		manager.Shutdown(true)
		received, _, files, totalFiles := manager.GetProgress()

		return DownloadDoneMsg{
			Received: received,
			Files:    files,
			TotalF:   totalFiles,
			Failed:   failed,
		}
	}
}

// Run starts the TUI application.
func Run() error {
	p := tea.NewProgram(NewModel(), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
