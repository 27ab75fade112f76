package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/autoplaylist/internal/models"
	"github.com/desertthunder/autoplaylist/internal/services"
	"github.com/desertthunder/autoplaylist/internal/tasks"
)

// previewLimit caps the tracks shown when a group is expanded.
const previewLimit = 10

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SelectView ViewState = iota
	GeneratingView
	ReviewView
	ConfirmView
	PublishingView
	ResultView
)

// job is a background engine call reporting through progress and finishing with one message on done.
type job struct {
	progress chan tasks.ProgressUpdate
	done     chan Msg
}

func newJob() *job {
	return &job{progress: make(chan tasks.ProgressUpdate, 64), done: make(chan Msg, 1)}
}

func (j *job) wait() tea.Cmd {
	return func() tea.Msg {
		if update, ok := <-j.progress; ok {
			return progressUpdateMsg(update)
		}
		return <-j.done
	}
}

// Model represents the TUI application state.
type Model struct {
	ctx            context.Context
	view           ViewState
	provider       services.Provider
	engine         *tasks.Engine
	opts           models.Options
	width          int
	height         int
	collectionList list.Model
	groupList      list.Model
	expanded       bool
	job            *job
	progress       tasks.ProgressUpdate
	result         *tasks.Result
	published      []tasks.Published
	err            error
	spinner        spinner.Model
	help           help.Model
	keys           keyMap
}

// NewModel creates a new TUI model that reads collections from provider and runs engine with opts.
func NewModel(ctx context.Context, provider services.Provider, engine *tasks.Engine, opts models.Options) *Model {
	return &Model{
		ctx:            ctx,
		view:           SelectView,
		provider:       provider,
		engine:         engine,
		opts:           opts,
		collectionList: newList(nil, "Collections"),
		groupList:      newList(nil, "Groups"),
		spinner:        spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:           help.New(),
		keys:           newKeyMap(),
	}
}

func newList(items []list.Item, title string) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	return l
}

// Init initializes the TUI by fetching the user's collections.
func (m *Model) Init() tea.Cmd {
	return m.fetchCollections()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case spinner.TickMsg:
		if m.view != GeneratingView && m.view != PublishingView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.view {
		case SelectView:
			return m.handleSelectKeys(msg)
		case ReviewView:
			return m.handleReviewKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		default:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgCollectionsFetched:
		data := msg.data.(collectionsFetched)
		if data.err != nil {
			m.err = data.err
			return m, tea.Quit
		}
		items := make([]list.Item, len(data.collections))
		for i, c := range data.collections {
			items[i] = collectionItem{collection: c}
		}
		m.collectionList = newList(items, "Choose collections")
		m.resize()
		return m, nil

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		if m.job == nil {
			return m, nil
		}
		return m, m.job.wait()

	case MsgGenerateComplete:
		data := msg.data.(generateComplete)
		m.job = nil
		if data.err != nil {
			m.err = data.err
			m.view = ResultView
			return m, nil
		}
		m.result = data.result
		m.groupList = newList(groupItems(data.result), "Review groups")
		m.resize()
		m.expanded = false
		m.view = ReviewView
		return m, nil

	case MsgPublishComplete:
		data := msg.data.(publishComplete)
		m.job = nil
		m.published = data.created
		m.err = data.err
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

// groupItems lists every non-empty group of result, all selected, genre first.
func groupItems(result *tasks.Result) []list.Item {
	var items []list.Item
	add := func(dimension string, groups []models.Group) {
		for _, g := range groups {
			if len(g.TrackIDs) > 0 {
				items = append(items, groupItem{dimension: dimension, group: g, selected: true})
			}
		}
	}
	add("Genre", result.GenreGroups)
	add("Language", result.LanguageGroups)
	add("Artist", result.ArtistGroups)
	return items
}

func (m *Model) resize() {
	w, h := max(m.width-4, 0), max(m.height-8, 0)
	m.collectionList.SetSize(w, h)
	if m.expanded {
		h = max(h-previewLimit-2, 0)
	}
	m.groupList.SetSize(w, h)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case SelectView:
		return m.renderSelect()
	case GeneratingView:
		return m.renderProgress("Generating groups")
	case ReviewView:
		return m.renderReview()
	case ConfirmView:
		return m.renderConfirm()
	case PublishingView:
		return m.renderProgress("Creating playlists")
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleSelectKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggle):
		if item, ok := m.collectionList.SelectedItem().(collectionItem); ok {
			item.selected = !item.selected
			return m, m.collectionList.SetItem(m.collectionList.Index(), item)
		}
		return m, nil
	case key.Matches(msg, m.keys.all):
		return m, toggleAll(&m.collectionList)
	case key.Matches(msg, m.keys.enter):
		ids := m.selectedCollections()
		if len(ids) == 0 {
			if item, ok := m.collectionList.SelectedItem().(collectionItem); ok {
				ids = []string{item.collection.ID}
			}
		}
		if len(ids) == 0 {
			return m, nil
		}
		m.view = GeneratingView
		m.progress = tasks.ProgressUpdate{}
		return m, tea.Batch(m.spinner.Tick, m.startGenerate(ids))
	}

	var cmd tea.Cmd
	m.collectionList, cmd = m.collectionList.Update(msg)
	return m, cmd
}

func (m *Model) handleReviewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = SelectView
		return m, nil
	case key.Matches(msg, m.keys.toggle):
		if item, ok := m.groupList.SelectedItem().(groupItem); ok {
			item.selected = !item.selected
			return m, m.groupList.SetItem(m.groupList.Index(), item)
		}
		return m, nil
	case key.Matches(msg, m.keys.all):
		return m, toggleAll(&m.groupList)
	case key.Matches(msg, m.keys.preview):
		m.expanded = !m.expanded
		m.resize()
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if len(m.selectedGroups()) > 0 {
			m.view = ConfirmView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.groupList, cmd = m.groupList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit), key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = ReviewView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = PublishingView
		m.progress = tasks.ProgressUpdate{}
		return m, tea.Batch(m.spinner.Tick, m.startPublish(m.selectedGroups()))
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = SelectView
		m.result = nil
		m.published = nil
		m.err = nil
		return m, nil
	}
	return m, nil
}

// toggleAll selects every item unless all are selected already, in which case it clears them.
func toggleAll(l *list.Model) tea.Cmd {
	items := l.Items()
	all := true
	for _, it := range items {
		switch it := it.(type) {
		case collectionItem:
			all = all && it.selected
		case groupItem:
			all = all && it.selected
		}
	}

	next := make([]list.Item, len(items))
	for i, it := range items {
		switch it := it.(type) {
		case collectionItem:
			it.selected = !all
			next[i] = it
		case groupItem:
			it.selected = !all
			next[i] = it
		default:
			next[i] = it
		}
	}
	return l.SetItems(next)
}

func (m *Model) selectedCollections() []string {
	var ids []string
	for _, it := range m.collectionList.Items() {
		if c, ok := it.(collectionItem); ok && c.selected {
			ids = append(ids, c.collection.ID)
		}
	}
	return ids
}

func (m *Model) selectedGroups() []models.Group {
	var groups []models.Group
	for _, it := range m.groupList.Items() {
		if g, ok := it.(groupItem); ok && g.selected {
			groups = append(groups, g.group)
		}
	}
	return groups
}

func (m *Model) fetchCollections() tea.Cmd {
	return func() tea.Msg {
		collections, err := m.provider.ListCollections(m.ctx)
		return collectionsFetchedMsg(collections, err)
	}
}

func (m *Model) startGenerate(ids []string) tea.Cmd {
	j := newJob()
	m.job = j

	go func() {
		result, err := m.engine.Enrich(m.ctx, ids, m.opts, j.progress)
		close(j.progress)
		j.done <- generateCompleteMsg(result, err)
	}()

	return j.wait()
}

func (m *Model) startPublish(groups []models.Group) tea.Cmd {
	j := newJob()
	m.job = j

	go func() {
		created, err := m.engine.Publish(m.ctx, groups, j.progress)
		close(j.progress)
		j.done <- publishCompleteMsg(created, err)
	}()

	return j.wait()
}

func (m *Model) renderSelect() string {
	helpKeys := []key.Binding{m.keys.toggle, m.keys.all, m.keys.enter, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.collectionList.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderProgress(title string) string {
	status := phaseLabel(m.progress)
	var detail string
	if m.progress.Message != "" {
		detail = styles.help.Render(m.progress.Message)
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})
	return fmt.Sprintf("%s\n\n%s %s\n%s\n\n%s", styles.title.Render(title), m.spinner.View(), status, detail, helpView)
}

// phaseLabel describes a progress update for display.
func phaseLabel(u tasks.ProgressUpdate) string {
	count := ""
	if u.Total > 0 {
		count = fmt.Sprintf(" (%d/%d)", u.Step, u.Total)
	}

	switch u.Phase {
	case tasks.FetchTracks:
		return "Fetching tracks" + count
	case tasks.FetchArtists:
		return "Resolving artist genres" + count
	case tasks.LookupCache:
		return "Checking the song cache"
	case tasks.InferFacts:
		return "Inferring language and genre" + count
	case tasks.StoreFacts:
		return "Saving song facts"
	case tasks.GroupTracks:
		return "Grouping tracks"
	case tasks.CreatePlaylist:
		return "Creating playlists" + count
	case tasks.AddTracks:
		return "Adding tracks" + count
	default:
		return "Starting..."
	}
}

func (m *Model) renderReview() string {
	var b strings.Builder
	b.WriteString(m.groupList.View())

	if m.expanded {
		if item, ok := m.groupList.SelectedItem().(groupItem); ok {
			b.WriteString("\n")
			b.WriteString(styles.box.Render(m.preview(item.group)))
		}
	}

	selected := len(m.selectedGroups())
	b.WriteString(fmt.Sprintf("\n%s\n", styles.help.Render(fmt.Sprintf("%d groups selected", selected))))

	helpKeys := []key.Binding{m.keys.toggle, m.keys.all, m.keys.preview, m.keys.enter, m.keys.back, m.keys.quit}
	b.WriteString(m.help.ShortHelpView(helpKeys))
	return b.String()
}

// preview lists the first tracks of g with their artists.
func (m *Model) preview(g models.Group) string {
	lines := make([]string, 0, previewLimit+1)
	for i, id := range g.TrackIDs {
		if i == previewLimit {
			lines = append(lines, fmt.Sprintf("… and %d more", len(g.TrackIDs)-previewLimit))
			break
		}
		d, ok := m.result.TrackDetails[id]
		if !ok {
			lines = append(lines, id)
			continue
		}
		lines = append(lines, fmt.Sprintf("%s - %s", d.Artists, d.Name))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderConfirm() string {
	groups := m.selectedGroups()
	tracks := 0
	for _, g := range groups {
		tracks += len(g.TrackIDs)
	}

	title := styles.title.Render(fmt.Sprintf("Create %d playlists?", len(groups)))
	var names strings.Builder
	for _, g := range groups {
		names.WriteString(fmt.Sprintf("  • %s%s (%d)\n", tasks.PlaylistPrefix, g.Name, len(g.TrackIDs)))
	}
	info := fmt.Sprintf("%s\nTracks: %d\n", names.String(), tracks)

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	return fmt.Sprintf("%s\n%s\n%s", title, info, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderResult() string {
	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	var created string
	for _, p := range m.published {
		created += fmt.Sprintf("\n  • %s%s (%d tracks)", tasks.PlaylistPrefix, p.Name, p.TrackCount)
	}

	if m.err != nil {
		msg := styles.err.Render(fmt.Sprintf("Failed: %v", m.err))
		if created != "" {
			msg += "\n\n" + styles.warn.Render("Created before the failure:") + created
		}
		return fmt.Sprintf("%s\n\n%s", msg, helpView)
	}

	title := styles.ok.Render(fmt.Sprintf("✓ Created %d playlists", len(m.published)))
	return fmt.Sprintf("%s\n%s\n\n%s", title, created, helpView)
}

// Err returns the error that ended the session, if any.
func (m *Model) Err() error {
	return m.err
}
