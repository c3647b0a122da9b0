package service

import (
	"fmt"
	"html"
	"slices"
	"strings"
	"time"

	"todo-app/internal/model"
	"todo-app/internal/projection"
)

// ReminderService builds human-readable summaries for daily notifications.
type ReminderService struct {
	store Dispatcher
}

func NewReminderService(store Dispatcher) *ReminderService {
	return &ReminderService{store: store}
}

// Summary renders the summary for the current snapshot.
func (s *ReminderService) Summary(now time.Time) string {
	return DailySummary(s.store.Current(), now)
}

// DailySummary renders open tasks by deadline and the tasks finished today as Telegram HTML.
func DailySummary(user *model.User, now time.Time) string {
	var pending, doneToday []model.Task
	for _, task := range user.Tasks {
		switch {
		case !task.Done:
			pending = append(pending, task)
		case task.DoneAt != nil && sameDay(task.DoneAt.In(now.Location()), now):
			doneToday = append(doneToday, task)
		}
	}

	slices.SortStableFunc(pending, func(a, b model.Task) int {
		switch {
		case a.Deadline == nil && b.Deadline == nil:
			return b.CreatedAt.Compare(a.CreatedAt)
		case a.Deadline == nil:
			return 1
		case b.Deadline == nil:
			return -1
		default:
			return a.Deadline.Compare(*b.Deadline)
		}
	})

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily summary</b>\n")
	if name := strings.TrimSpace(user.Name); name != "" {
		builder.WriteString(fmt.Sprintf("👋 Hi, %s\n", html.EscapeString(name)))
	}
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("2006-01-02")))

	builder.WriteString("🔥 <b>Open tasks</b>\n")
	if len(pending) == 0 {
		builder.WriteString("- nothing open\n")
	} else {
		for _, task := range pending {
			builder.WriteString(formatTask(user, task, now))
		}
	}

	builder.WriteString("\n✅ <b>Done today</b>\n")
	if len(doneToday) == 0 {
		builder.WriteString("- nothing yet\n")
	} else {
		for _, task := range doneToday {
			builder.WriteString(fmt.Sprintf("✔️ %s\n", html.EscapeString(task.Name)))
		}
	}

	return strings.TrimSpace(builder.String())
}

func formatTask(user *model.User, task model.Task, now time.Time) string {
	var sb strings.Builder

	icon := "🟢"
	if task.Deadline != nil {
		d := task.Deadline.In(now.Location())
		switch {
		case now.After(d):
			icon = "⚠️"
		case d.Sub(now) <= 48*time.Hour:
			icon = "⏳"
		}
	}

	sb.WriteString(fmt.Sprintf("%s %s", icon, html.EscapeString(strings.TrimSpace(task.Name))))

	if category, ok := projection.CategoryOf(user, task); ok {
		sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(category.Name)))
	}

	if task.Deadline != nil {
		d := task.Deadline.In(now.Location())
		if now.After(d) {
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s, <b>overdue</b>", d.Format("2006-01-02")))
		} else {
			daysLeft := int(d.Sub(now).Hours()/24) + 1
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s · ≈%d days left", d.Format("2006-01-02"), daysLeft))
		}
	}

	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(strings.TrimSpace(task.Description))))
	}

	sb.WriteByte('\n')
	return sb.String()
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
