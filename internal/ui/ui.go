package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/djx/internal/formatter"
	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/playlist"
	"github.com/desertthunder/djx/internal/shared"
	"github.com/desertthunder/djx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	GeneratingView ViewState = iota
	TrackListView
	SavingView
	ErrorView
)

// Generator runs the transcript-to-tracks pipeline.
type Generator interface {
	FromText(ctx context.Context, transcript string, opts tasks.Options, progress chan<- tasks.ProgressUpdate) (*models.PlaylistResult, error)
}

// Saver persists an already curated track list.
type Saver interface {
	Assemble(ctx context.Context, req playlist.Request) (*models.PlaylistResult, error)
}

// FeedbackSubmitter accepts track feedback.
type FeedbackSubmitter interface {
	Submit(ctx context.Context, trackID string, action models.FeedbackAction, playlistID string) (*models.Feedback, error)
}

// Opts wires the collaborators of a [Model]. Saver and Feedback are optional.
type Opts struct {
	Generator  Generator
	Saver      Saver
	Feedback   FeedbackSubmitter
	Transcript string
	Name       string
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	opts         Opts
	view         ViewState
	width        int
	height       int
	trackList    list.Model
	progressChan chan tasks.ProgressUpdate
	doneChan     chan resultData
	progress     tasks.ProgressUpdate
	result       *models.PlaylistResult
	saved        bool
	status       string
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a TUI model that generates a playlist for opts.Transcript on start.
func NewModel(ctx context.Context, opts Opts) *Model {
	return &Model{
		ctx:  ctx,
		opts: opts,
		view: GeneratingView,
		help: help.New(),
		keys: newKeyMap(),
	}
}

// Result returns the latest playlist result, persisted or not.
func (m *Model) Result() *models.PlaylistResult { return m.result }

// Saved reports whether the result was persisted during this session.
func (m *Model) Saved() bool { return m.saved }

// Err returns the error that ended generation, if any.
func (m *Model) Err() error { return m.err }

// Init starts generation.
func (m *Model) Init() tea.Cmd {
	return m.startGenerate()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.view == TrackListView {
			m.trackList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case TrackListView:
			return m.handleTrackListKeys(msg)
		default:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		}

	case Msg:
		return m.handleMsg(msg)
	}

	if m.view == TrackListView {
		var cmd tea.Cmd
		m.trackList, cmd = m.trackList.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgGenerated:
		data := msg.data.(resultData)
		m.progressChan = nil
		m.doneChan = nil
		if data.err != nil {
			m.err = data.err
			m.view = ErrorView
			return m, nil
		}
		m.result = data.result
		m.trackList = list.New(trackItems(data.result.Tracks), list.NewDefaultDelegate(), 0, 0)
		m.trackList.Title = m.listTitle()
		m.trackList.SetSize(max(m.width-4, 0), max(m.height-8, 0))
		m.view = TrackListView
		if len(data.result.Tracks) == 0 {
			m.status = styles.warn.Render(formatter.NoTracks)
		}
		return m, nil

	case MsgSaved:
		data := msg.data.(resultData)
		m.view = TrackListView
		if data.result != nil && data.result.Persisted() {
			m.result = data.result
			m.saved = true
			m.trackList.Title = m.listTitle()
		}
		switch {
		case data.err != nil:
			m.status = styles.err.Render(fmt.Sprintf("Save failed: %v", data.err))
		default:
			m.status = styles.ok.Render(fmt.Sprintf("✓ Saved %s", m.result.PlaylistURL))
		}
		return m, nil

	case MsgFeedbackSent:
		data := msg.data.(feedbackData)
		if data.err != nil {
			m.status = styles.err.Render(fmt.Sprintf("Feedback failed: %v", data.err))
			return m, nil
		}
		items := m.trackList.Items()
		if data.index >= 0 && data.index < len(items) {
			if item, ok := items[data.index].(trackItem); ok {
				item.feedback = data.feedback.Action
				m.trackList.SetItem(data.index, item)
			}
		}
		m.status = styles.ok.Render("✓ Feedback recorded")
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case GeneratingView:
		return m.renderProgress()
	case TrackListView:
		return m.renderTrackList()
	case SavingView:
		return styles.title.Render("Saving playlist...")
	case ErrorView:
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	default:
		return ""
	}
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.trackList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.trackList, cmd = m.trackList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.save):
		return m, m.save()
	case key.Matches(msg, m.keys.more):
		return m, m.sendFeedback(models.MoreLikeThis)
	case key.Matches(msg, m.keys.less):
		return m, m.sendFeedback(models.LessLikeThis)
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) startGenerate() tea.Cmd {
	if m.opts.Generator == nil {
		return func() tea.Msg {
			return generatedMsg(nil, fmt.Errorf("%w: no generator configured", shared.ErrUpstreamUnavailable))
		}
	}

	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan resultData, 1)
	m.progressChan = progress
	m.doneChan = done

	go func() {
		result, err := m.opts.Generator.FromText(m.ctx, m.opts.Transcript, tasks.Options{Name: m.opts.Name}, progress)
		done <- resultData{result, err}
		close(progress)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.doneChan
	return func() tea.Msg {
		if progress == nil {
			return nil
		}
		update, ok := <-progress
		if !ok {
			data := <-done
			return generatedMsg(data.result, data.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) save() tea.Cmd {
	switch {
	case m.result == nil:
		return nil
	case m.saved || m.result.Persisted():
		m.status = styles.warn.Render("Already saved: " + m.result.PlaylistURL)
		return nil
	case len(m.result.Tracks) == 0:
		m.status = styles.warn.Render("Nothing to save.")
		return nil
	case m.opts.Saver == nil:
		m.status = styles.err.Render("Saving is not configured; run `djx auth` first.")
		return nil
	}

	m.view = SavingView
	r := m.result
	req := playlist.Request{
		Transcript: r.Transcript,
		Intent:     r.Intent,
		Queries:    r.Queries,
		Tracks:     r.Tracks,
		Persist:    true,
		Name:       m.opts.Name,
	}
	saver, ctx := m.opts.Saver, m.ctx
	return func() tea.Msg {
		result, err := saver.Assemble(ctx, req)
		return savedMsg(result, err)
	}
}

func (m *Model) sendFeedback(action models.FeedbackAction) tea.Cmd {
	item, ok := m.trackList.SelectedItem().(trackItem)
	if !ok {
		return nil
	}
	if m.opts.Feedback == nil {
		m.status = styles.err.Render("Feedback is not configured.")
		return nil
	}

	index := m.trackList.Index()
	var playlistID string
	if m.result != nil {
		playlistID = m.result.PlaylistID
	}
	submitter, ctx := m.opts.Feedback, m.ctx
	return func() tea.Msg {
		fb, err := submitter.Submit(ctx, item.track.ID, action, playlistID)
		if err == nil && fb == nil {
			err = errors.New("feedback was not recorded")
		}
		return feedbackSentMsg(index, fb, err)
	}
}

func (m *Model) listTitle() string {
	if m.result == nil {
		return "Tracks"
	}
	name := m.result.PlaylistName
	if name == "" {
		name = playlist.Name(m.result.Queries)
	}
	title := fmt.Sprintf("%s (%d tracks)", name, len(m.result.Tracks))
	if m.result.Persisted() {
		title += " ✓"
	}
	return title
}

func (m *Model) renderProgress() string {
	title := styles.title.Render("Building your playlist")

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	if m.opts.Transcript != "" {
		b.WriteString(styles.help.Render(fmt.Sprintf("%q", m.opts.Transcript)))
		b.WriteString("\n\n")
	}

	if m.progress.Total > 0 {
		fmt.Fprintf(&b, "[%d/%d] %s", m.progress.Step, m.progress.Total, m.progress.Message)
	} else {
		b.WriteString("Starting...")
	}

	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	return b.String()
}

func (m *Model) renderTrackList() string {
	out := m.trackList.View()
	if m.status != "" {
		out += "\n" + m.status
	}
	return fmt.Sprintf("%s\n\n%s", out, m.help.ShortHelpView(m.keys.ShortHelp()))
}
