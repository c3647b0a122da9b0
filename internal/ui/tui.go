// Package ui provides the terminal view of the todo list.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"todo-app/internal/model"
	"todo-app/internal/projection"
	"todo-app/internal/service"
	"todo-app/internal/state"
)

// Store is the state container the terminal view renders and dispatches to.
type Store interface {
	service.Dispatcher
	Subscribe(l state.Listener) (unsubscribe func())
	SetEffectHandler(fn func(state.Effect))
}

// RunTUI shows the todo list until the user quits or ctx is cancelled.
func RunTUI(ctx context.Context, store Store, readDelay time.Duration) error {
	m := newTUIModel(store, readDelay)
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	unsubscribe := store.Subscribe(func(user *model.User) {
		program.Send(snapshotMsg{user: user})
	})
	defer unsubscribe()
	store.SetEffectHandler(func(e state.Effect) {
		program.Send(effectMsg{effect: e})
	})
	defer store.SetEffectHandler(nil)

	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

type snapshotMsg struct {
	user *model.User
}

type effectMsg struct {
	effect state.Effect
}

type errMsg struct {
	err error
}

type readTickMsg struct {
	gen int
}

type tuiModel struct {
	store      Store
	dispatchMu *sync.Mutex
	user       *model.User
	tasks      []model.Task
	cursor     int
	readDelay  time.Duration

	adding        bool
	input         []rune
	confirmDelete string
	status        string

	reading   bool
	readGen   int
	readIdx   int
	readLines []string
}

func newTUIModel(store Store, readDelay time.Duration) *tuiModel {
	if readDelay <= 0 {
		readDelay = 1500 * time.Millisecond
	}
	m := &tuiModel{store: store, dispatchMu: &sync.Mutex{}, readDelay: readDelay}
	m.setUser(store.Current())
	return m
}

func (m *tuiModel) Init() tea.Cmd {
	return nil
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case msg.String() == "ctrl+c":
			return m, tea.Quit
		case m.adding:
			return m, m.updateInput(msg)
		case m.confirmDelete != "":
			return m, m.updateConfirm(msg)
		}
		return m, m.updateList(msg)
	case snapshotMsg:
		m.setUser(msg.user)
	case effectMsg:
		m.applyEffect(msg.effect)
	case errMsg:
		m.status = describeError(msg.err)
	case readTickMsg:
		if !m.reading || msg.gen != m.readGen {
			return m, nil
		}
		m.readIdx++
		if m.readIdx >= len(m.readLines) {
			m.reading = false
			m.status = "Finished reading."
			return m, nil
		}
		return m, m.readTick()
	}
	return m, nil
}

func (m *tuiModel) updateList(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q":
		return tea.Quit
	case "j", "down":
		if m.cursor < len(m.tasks)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case " ", "space", "enter":
		if task, ok := m.selected(); ok {
			return m.dispatch(state.ToggleTaskDone{TaskID: task.ID})
		}
	case "d":
		if task, ok := m.selected(); ok {
			m.confirmDelete = task.ID
			m.status = fmt.Sprintf("Delete %q? y to confirm", task.Name)
		}
	case "a":
		m.adding = true
		m.input = m.input[:0]
		m.status = ""
	case "c":
		return m.toggle(model.SettingEnableCategories)
	case "b":
		return m.toggle(model.SettingDoneToBottom)
	case "g":
		return m.toggle(model.SettingEnableGlow)
	case "r":
		return m.toggle(model.SettingEnableReadAloud)
	case "n":
		return m.toggle(model.SettingAppBadge)
	case "+", "=":
		return m.stepVolume(0.1)
	case "-":
		return m.stepVolume(-0.1)
	case "s":
		return m.startReading()
	case "x":
		if m.reading {
			m.stopReading()
		}
	}
	return nil
}

func (m *tuiModel) updateInput(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.adding = false
		m.input = m.input[:0]
	case tea.KeyEnter:
		name := strings.TrimSpace(string(m.input))
		m.adding = false
		m.input = m.input[:0]
		if name == "" {
			return nil
		}
		return m.dispatch(state.AddTask{Draft: state.TaskDraft{Name: name}})
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeySpace:
		m.input = append(m.input, ' ')
	case tea.KeyRunes:
		m.input = append(m.input, msg.Runes...)
	}
	return nil
}

func (m *tuiModel) updateConfirm(msg tea.KeyMsg) tea.Cmd {
	id := m.confirmDelete
	m.confirmDelete = ""
	if msg.String() != "y" {
		m.status = "Delete cancelled."
		return nil
	}
	m.status = ""
	return m.dispatch(state.RemoveTask{TaskID: id})
}

// dispatch runs the update outside the event loop. The new snapshot arrives
// through the store subscription.
func (m *tuiModel) dispatch(intent state.Intent) tea.Cmd {
	return m.dispatchFrom(func(*model.User) state.Intent { return intent })
}

// dispatchFrom builds the intent from the latest committed snapshot rather
// than the rendered one. Commands of one model build and apply one at a time.
func (m *tuiModel) dispatchFrom(build func(*model.User) state.Intent) tea.Cmd {
	store, mu := m.store, m.dispatchMu
	return func() tea.Msg {
		mu.Lock()
		defer mu.Unlock()
		if _, err := store.Update(build(store.Current())); err != nil {
			return errMsg{err: err}
		}
		return nil
	}
}

func (m *tuiModel) toggle(key model.SettingKey) tea.Cmd {
	return m.dispatchFrom(func(user *model.User) state.Intent {
		return state.SetSetting{Key: key, Value: !user.AppSettings().Bool(key)}
	})
}

func (m *tuiModel) stepVolume(delta float64) tea.Cmd {
	return m.dispatchFrom(func(user *model.User) state.Intent {
		return state.SetSetting{Key: model.SettingVoiceVolume, Value: clampVolume(user.AppSettings().VoiceVolume + delta)}
	})
}

func (m *tuiModel) setUser(user *model.User) {
	m.user = user
	m.tasks = projection.OrderedTasks(user)
	if m.cursor >= len(m.tasks) {
		m.cursor = max(len(m.tasks)-1, 0)
	}
}

func (m *tuiModel) selected() (model.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.tasks) {
		return model.Task{}, false
	}
	return m.tasks[m.cursor], true
}

func (m *tuiModel) applyEffect(e state.Effect) {
	switch e.Kind {
	case state.EffectCancelSpeech:
		if m.reading {
			m.stopReading()
		}
	case state.EffectNotify:
		m.status = e.Message
	}
}

func (m *tuiModel) startReading() tea.Cmd {
	if !m.user.AppSettings().EnableReadAloud {
		m.status = "Read aloud is off (r to turn on)."
		return nil
	}
	var lines []string
	for _, t := range m.tasks {
		if !t.Done {
			lines = append(lines, t.Name)
		}
	}
	if len(lines) == 0 {
		m.status = "Nothing to read."
		return nil
	}
	m.reading = true
	m.readGen++
	m.readIdx = 0
	m.readLines = lines
	m.status = ""
	return m.readTick()
}

func (m *tuiModel) stopReading() {
	m.reading = false
	m.readGen++
	m.status = "Reading stopped."
}

func (m *tuiModel) readTick() tea.Cmd {
	gen := m.readGen
	return tea.Tick(m.readDelay, func(time.Time) tea.Msg {
		return readTickMsg{gen: gen}
	})
}

func (m *tuiModel) View() string {
	var b strings.Builder
	settings := m.user.AppSettings()

	writeTitle(&b, m.user)
	if len(m.tasks) == 0 {
		b.WriteString("  No tasks yet. Press a to add one.\n")
	}
	for i, task := range m.tasks {
		b.WriteString(formatRow(m.user, task, i == m.cursor, settings))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	if m.adding {
		b.WriteString(fmt.Sprintf("New task: %s_  (%d/%d)\n", string(m.input), utf8.RuneCountInString(string(m.input)), model.TaskNameMaxLength))
	}
	if m.reading && m.readIdx < len(m.readLines) {
		b.WriteString(fmt.Sprintf("🔊 %s  (%s, %d%%)\n", m.readLines[m.readIdx], settings.Voice, int(settings.VoiceVolume*100+0.5)))
	}
	if m.status != "" {
		b.WriteString(m.status + "\n")
	}

	writeSettings(&b, settings)
	b.WriteString("\nj/k move · space toggle · a add · d delete · s read · x stop · c/b/g/r/n settings · +/- volume · q quit\n")
	return b.String()
}

func writeTitle(b *strings.Builder, user *model.User) {
	title := "Todo App"
	if avatar := projection.AvatarFor(user); avatar.Initial != "" {
		title = fmt.Sprintf("Todo App · [%s] %s", avatar.Initial, avatar.Alt)
	}
	if user.AppSettings().AppBadge {
		if badge, ok := projection.TaskBadge(user); ok {
			title += fmt.Sprintf("  (%s)", badge)
		}
	}
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", utf8.RuneCountInString(title)) + "\n\n")
}

func formatRow(user *model.User, task model.Task, selected bool, settings model.AppSettings) string {
	pointer := "  "
	if selected {
		pointer = "> "
		if settings.EnableGlow {
			pointer = "» "
		}
	}
	check := "[ ]"
	if task.Done {
		check = "[x]"
	}
	row := fmt.Sprintf("%s%s %s", pointer, check, task.Name)
	if settings.EnableCategories {
		if category, ok := projection.CategoryOf(user, task); ok {
			row += fmt.Sprintf("  (%s)", category.Name)
		}
	}
	if task.Deadline != nil && !task.Done {
		row += "  due " + task.Deadline.Format("2006-01-02")
	}
	return row
}

func writeSettings(b *strings.Builder, s model.AppSettings) {
	var parts []string
	for _, key := range model.ToggleKeys {
		mark := "off"
		if s.Bool(key) {
			mark = "on"
		}
		parts = append(parts, fmt.Sprintf("%s: %s", key.Label(), mark))
	}
	parts = append(parts, fmt.Sprintf("Volume: %d%%", int(s.VoiceVolume*100+0.5)))
	b.WriteString(strings.Join(parts, " | ") + "\n")
}

func describeError(err error) string {
	switch {
	case errors.Is(err, state.ErrNotFound):
		return "Not found."
	case errors.Is(err, state.ErrValidation):
		return strings.TrimPrefix(err.Error(), state.ErrValidation.Error()+": ")
	default:
		return "Error: " + err.Error()
	}
}

func clampVolume(v float64) float64 {
	v = float64(int(v*10+0.5)) / 10
	return min(max(v, 0), 1)
}
