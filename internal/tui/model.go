// Package tui is the interactive terminal list of synced users.
//
// The program goroutine is the consumer goroutine of the view model: sync
// outcomes are posted through a TaskQueue and delivered inside Update, so the
// published snapshot is only ever read from there.
package tui

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mschirtzinger/userlist/internal/listvm"
	"github.com/mschirtzinger/userlist/internal/viewmodel"
)

// chromeLines is the height taken by the header and footer.
const chromeLines = 4

// defaultHeight is used until the first WindowSizeMsg arrives.
const defaultHeight = 24

// Syncer starts one sync cycle. viewmodel.Handle implements it.
type Syncer interface {
	Start(observer viewmodel.Observer) error
}

// listState is the observer of the view model. Its methods run inside
// Update on the program goroutine.
type listState struct {
	snapshot *listvm.Cache
	total    int32
	cursor   int32
	offset   int32

	syncing  bool
	lastSync time.Time
	err      error

	// status is a transient footer message
	status string
}

// OnUpdate replaces the displayed snapshot, keeping the cursor in range.
func (s *listState) OnUpdate(snapshot *listvm.Cache) {
	if s.snapshot != nil {
		_ = s.snapshot.Close()
	}
	s.snapshot = snapshot
	s.syncing = false
	s.lastSync = time.Now()
	s.err = nil

	total, err := snapshot.Count()
	if err != nil {
		s.err = fmt.Errorf("failed to count rows: %w", err)
		total = 0
	}
	s.total = total
	s.cursor = min(s.cursor, max(total-1, 0))
	s.offset = min(s.offset, s.cursor)
}

// OnFailure keeps the previous snapshot on screen and shows the error.
func (s *listState) OnFailure(err error) {
	s.syncing = false
	s.err = err
}

func (s *listState) close() {
	if s.snapshot != nil {
		_ = s.snapshot.Close()
		s.snapshot = nil
	}
}

// Model is the Bubble Tea model for the user list
type Model struct {
	syncer Syncer
	tasks  *TaskQueue
	keys   KeyMap

	spinner spinner.Model
	help    help.Model

	list *listState

	// Dimensions
	Width  int
	Height int
}

// NewModel creates a list model. syncer must post its outcomes to tasks.
func NewModel(syncer Syncer, tasks *TaskQueue) Model {
	return Model{
		syncer:  syncer,
		tasks:   tasks,
		keys:    DefaultKeyMap(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(accentStyle)),
		help:    help.New(),
		list:    &listState{},
	}
}

// Init starts the first sync and the task pump
func (m Model) Init() tea.Cmd {
	m.startSync()
	return tea.Batch(m.tasks.Wait(), m.spinner.Tick)
}

// Close releases the displayed snapshot. Call it after the program exits.
func (m Model) Close() {
	m.list.close()
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.help.Width = msg.Width
		m.scrollToCursor()
		return m, nil

	case taskMsg:
		msg()
		m.scrollToCursor()
		return m, m.tasks.Wait()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	page := int32(m.visibleRows())

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.PageUp):
		m.moveCursor(-page)
	case key.Matches(msg, m.keys.PageDown):
		m.moveCursor(page)
	case key.Matches(msg, m.keys.Home):
		m.moveCursor(-m.list.total)
	case key.Matches(msg, m.keys.End):
		m.moveCursor(m.list.total)
	case key.Matches(msg, m.keys.Refresh):
		m.startSync()
	}
	return m, nil
}

// startSync begins a cycle unless one is already running.
func (m Model) startSync() {
	err := m.syncer.Start(m.list)
	switch {
	case err == nil:
		m.list.syncing = true
		m.list.status = ""
	case errors.Is(err, viewmodel.ErrSyncInProgress):
		m.list.status = "sync already running"
	default:
		m.list.status = err.Error()
	}
}

func (m Model) moveCursor(delta int32) {
	if m.list.total == 0 {
		return
	}
	m.list.cursor = min(max(m.list.cursor+delta, 0), m.list.total-1)
	m.scrollToCursor()
}

// scrollToCursor adjusts the window so the cursor row is visible.
func (m Model) scrollToCursor() {
	visible := int32(m.visibleRows())
	s := m.list
	if s.cursor < s.offset {
		s.offset = s.cursor
	}
	if s.cursor >= s.offset+visible {
		s.offset = s.cursor - visible + 1
	}
}

func (m Model) visibleRows() int {
	height := m.Height
	if height == 0 {
		height = defaultHeight
	}
	return max(height-chromeLines, 1)
}

// Cursor returns the selected row index.
func (m Model) Cursor() int32 {
	return m.list.cursor
}

// Offset returns the index of the first visible row.
func (m Model) Offset() int32 {
	return m.list.offset
}
