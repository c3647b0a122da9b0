package bot

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"todo-app/internal/model"
	"todo-app/internal/projection"
	"todo-app/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageName
	stageDescription
	stageCategory
	stageDeadline
)

type conversationState struct {
	stage conversationStage
	input service.TaskInput
}

type confirmationRequest struct {
	taskID string
}

func (b *Bot) startNewTaskConversation(chatID int64) error {
	log.Println("[info] start new task conversation")
	b.clearConfirmation()
	b.setConversation(&conversationState{stage: stageName})
	return b.sendWithReplyMarkup(chatID, "🆕 New task.\n<b>Step 1:</b> what should it be called?", cancelKeyboard())
}

func (b *Bot) handleConversation(msg *tgbotapi.Message, conv *conversationState) error {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	switch conv.stage {
	case stageName:
		if text == "" {
			return b.sendWithReplyMarkup(chatID, "The name cannot be empty. What should the task be called?", cancelKeyboard())
		}
		if n := len([]rune(text)); n > model.TaskNameMaxLength {
			return b.sendWithReplyMarkup(chatID, fmt.Sprintf("That is %d characters, the limit is %d. Try a shorter name.", n, model.TaskNameMaxLength), cancelKeyboard())
		}
		conv.input.Name = text
		conv.stage = stageDescription
		return b.sendWithReplyMarkup(chatID, "✏️ Add a short description (or press Skip).", skipKeyboard())
	case stageDescription:
		if !isSkipInput(text) {
			if n := len([]rune(text)); n > model.TaskDescriptionMaxLength {
				return b.sendWithReplyMarkup(chatID, fmt.Sprintf("The description is limited to %d characters.", model.TaskDescriptionMaxLength), skipKeyboard())
			}
			conv.input.Description = text
		}
		if b.store.Current().AppSettings().EnableCategories {
			conv.stage = stageCategory
			return b.sendWithReplyMarkup(chatID, "🏷 Pick a category or type a new one (or Skip).", categoryKeyboard(b.categorySvc.List()))
		}
		conv.stage = stageDeadline
		return b.sendWithReplyMarkup(chatID, "⏰ Deadline as <code>2026-11-30</code> (or Skip).", skipKeyboard())
	case stageCategory:
		if !isSkipInput(text) {
			if n := len([]rune(text)); n > model.CategoryNameMaxLength {
				return b.sendWithReplyMarkup(chatID, fmt.Sprintf("Category names are limited to %d characters.", model.CategoryNameMaxLength), categoryKeyboard(b.categorySvc.List()))
			}
			conv.input.Category = text
		}
		conv.stage = stageDeadline
		return b.sendWithReplyMarkup(chatID, "⏰ Deadline as <code>2026-11-30</code> (or Skip).", skipKeyboard())
	case stageDeadline:
		if !isSkipInput(text) {
			parsed, err := time.ParseInLocation("2006-01-02", text, time.Local)
			if err != nil {
				return b.sendWithReplyMarkup(chatID, "I cannot read that date. Use <code>2026-11-30</code> or Skip.", skipKeyboard())
			}
			// End of the given day.
			deadline := parsed.Add(24*time.Hour - time.Second)
			conv.input.Deadline = &deadline
		}
		err := b.finishTaskCreation(chatID, conv.input)
		b.clearConversation()
		return err
	default:
		b.clearConversation()
		return b.sendText(chatID, "Input reset. Start again with /newtask.")
	}
}

func (b *Bot) finishTaskCreation(chatID int64, input service.TaskInput) error {
	task, err := b.taskSvc.CreateTask(input)
	if err != nil {
		return b.sendError(chatID, err)
	}

	log.Printf("[info] task created id=%s", task.ID)

	var summary strings.Builder
	summary.WriteString("✅ <b>Task saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>Name:</b> %s\n", escape(normalizeTitle(task.Name))))
	if task.Description != "" {
		summary.WriteString(fmt.Sprintf("• <b>Description:</b> %s\n", escape(task.Description)))
	}
	if category, ok := projection.CategoryOf(b.store.Current(), task); ok {
		summary.WriteString(fmt.Sprintf("• <b>Category:</b> %s\n", escape(category.Name)))
	}
	if task.Deadline != nil {
		summary.WriteString(fmt.Sprintf("• <b>Deadline:</b> %s\n", task.Deadline.Format("2006-01-02")))
	}

	if err := b.sendTextWithRemove(chatID, strings.TrimSpace(summary.String())); err != nil {
		return err
	}
	return b.sendTaskList(chatID)
}

func (b *Bot) sendTaskList(chatID int64) error {
	user := b.store.Current()
	tasks := projection.OrderedTasks(user)
	if len(tasks) == 0 {
		return b.sendText(chatID, "You have no tasks. Add one with /newtask.")
	}

	settings := user.AppSettings()
	now := b.now()

	var builder strings.Builder
	builder.WriteString("📋 <b>Tasks</b>")
	if badge, ok := projection.TaskBadge(user); ok {
		builder.WriteString(fmt.Sprintf(" · %s open", badge))
	}
	builder.WriteString("\nTap a button to toggle or delete a task.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for i, task := range tasks {
		n := i + 1
		builder.WriteString(formatTask(user, task, n, now, settings.EnableCategories))

		label := fmt.Sprintf("✅ #%d · %s", n, shortTitle(task.Name, 20))
		if task.Done {
			label = fmt.Sprintf("↩️ #%d · %s", n, shortTitle(task.Name, 20))
		}
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbTogglePrefix+task.ID),
			tgbotapi.NewInlineKeyboardButtonData("🗑", cbDeletePrefix+task.ID),
		))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) handleTaskDetails(chatID int64, args string) error {
	n, err := parsePosition(args)
	if err != nil {
		return b.sendText(chatID, "Give the task number: /task 2")
	}
	task, err := b.taskSvc.GetTask(n)
	if err != nil {
		return b.sendError(chatID, err)
	}

	user := b.store.Current()
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>#%d %s</b>\n", n, escape(normalizeTitle(task.Name))))
	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("📝 %s\n", escape(task.Description)))
	}
	if task.CategoryID != "" {
		if category, ok := projection.CategoryOf(user, task); ok {
			sb.WriteString(fmt.Sprintf("🏷 %s\n", categoryLabel(category.Name)))
		} else {
			sb.WriteString("🏷 <i>deleted category</i>\n")
		}
	}
	if task.Deadline != nil {
		sb.WriteString(fmt.Sprintf("⏰ Deadline: %s\n", task.Deadline.In(b.now().Location()).Format("2006-01-02")))
	}
	sb.WriteString(fmt.Sprintf("🕓 Created: %s\n", task.CreatedAt.In(b.now().Location()).Format("2006-01-02 15:04")))
	if task.Done && task.DoneAt != nil {
		sb.WriteString(fmt.Sprintf("✔️ Done: %s\n", task.DoneAt.In(b.now().Location()).Format("2006-01-02 15:04")))
	}

	toggle := "✅ Mark done"
	if task.Done {
		toggle = "↩️ Reopen"
	}
	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(sb.String()))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(toggle, cbTogglePrefix+task.ID),
		tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", cbDeletePrefix+task.ID),
	))
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) handleDone(chatID int64, args string) error {
	n, err := parsePosition(args)
	if err != nil {
		return b.sendText(chatID, "Give the task number: /done 3")
	}
	task, err := b.taskSvc.GetTask(n)
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.toggleTaskAndRefresh(chatID, task.ID)
}

func (b *Bot) handleDelete(chatID int64, args string) error {
	n, err := parsePosition(args)
	if err != nil {
		return b.sendText(chatID, "Give the task number: /delete 3")
	}
	task, err := b.taskSvc.GetTask(n)
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.askDeleteConfirmation(chatID, task.ID)
}

func (b *Bot) toggleTaskAndRefresh(chatID int64, taskID string) error {
	task, err := b.taskSvc.ToggleTask(taskID)
	if err != nil {
		return b.sendError(chatID, err)
	}

	log.Printf("[info] task toggled id=%s done=%t", task.ID, task.Done)
	info := fmt.Sprintf("✅ Task «%s» done.", escape(normalizeTitle(task.Name)))
	if !task.Done {
		info = fmt.Sprintf("↩️ Task «%s» reopened.", escape(normalizeTitle(task.Name)))
	}
	if err := b.sendText(chatID, info); err != nil {
		return err
	}
	return b.sendTaskList(chatID)
}

func (b *Bot) askDeleteConfirmation(chatID int64, taskID string) error {
	user := b.store.Current()
	idx := user.TaskIndex(taskID)
	if idx < 0 {
		return b.sendText(chatID, "Task not found.")
	}
	task := user.Tasks[idx]

	b.clearConversation()
	b.setConfirmation(confirmationRequest{taskID: task.ID})
	text := fmt.Sprintf("Delete task «%s»?", escape(normalizeTitle(task.Name)))
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) handleConfirmationResponse(msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation()
		return b.deleteTaskAndRefresh(msg.Chat.ID, req.taskID)
	case isCancelInput(text):
		b.clearConfirmation()
		return b.sendMenuPlaceholder(msg.Chat.ID)
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Confirm or cancel the deletion.", confirmKeyboard())
	}
}

func (b *Bot) deleteTaskAndRefresh(chatID int64, taskID string) error {
	user := b.store.Current()
	idx := user.TaskIndex(taskID)
	if idx < 0 {
		return b.sendTextWithRemove(chatID, "Task not found or already deleted.")
	}
	task := user.Tasks[idx]

	if err := b.taskSvc.DeleteTask(taskID); err != nil {
		return b.sendError(chatID, err)
	}

	log.Printf("[info] task deleted id=%s", task.ID)
	if err := b.sendTextWithRemove(chatID, fmt.Sprintf("🗑 Task «%s» deleted.", escape(normalizeTitle(task.Name)))); err != nil {
		return err
	}
	return b.sendTaskList(chatID)
}

func (b *Bot) handleCategories(chatID int64) error {
	user := b.store.Current()
	categories := b.categorySvc.List()
	if len(categories) == 0 {
		return b.sendText(chatID, "No categories yet. Add one with /addcategory or while creating a task.")
	}

	counts := make(map[string]int, len(categories))
	for _, t := range user.Tasks {
		counts[t.CategoryID]++
	}

	var builder strings.Builder
	builder.WriteString("📂 <b>Categories</b>\n")
	for _, c := range categories {
		builder.WriteString(fmt.Sprintf("• %s <code>%s</code> · %d tasks\n", categoryLabel(c.Name), c.Color, counts[c.ID]))
	}
	if !user.AppSettings().EnableCategories {
		builder.WriteString("\n<i>Categories are turned off in /settings.</i>")
	}
	return b.sendText(chatID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleAddCategory(chatID int64, args string) error {
	name, color := splitNameColor(args)
	if name == "" {
		return b.sendText(chatID, "Usage: /addcategory Work #1e90ff")
	}
	category, err := b.categorySvc.Create(name, color)
	if err != nil {
		return b.sendError(chatID, err)
	}
	log.Printf("[info] category created id=%s", category.ID)
	return b.sendText(chatID, fmt.Sprintf("📂 Category %s added.", categoryLabel(category.Name)))
}

func (b *Bot) handleDeleteCategory(chatID int64, args string) error {
	if args == "" {
		return b.sendText(chatID, "Usage: /delcategory Work")
	}
	if err := b.categorySvc.DeleteByName(args); err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, fmt.Sprintf("🗑 Category %s deleted. Its tasks keep their place.", escape(args)))
}

// splitNameColor splits "Some name #aabbcc" into the name and the optional color.
func splitNameColor(args string) (string, string) {
	fields := strings.Fields(args)
	if len(fields) > 1 && strings.HasPrefix(fields[len(fields)-1], "#") {
		return strings.Join(fields[:len(fields)-1], " "), fields[len(fields)-1]
	}
	return strings.Join(fields, " "), ""
}

func parsePosition(args string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(args), "#"))
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("position must be positive")
	}
	return n, nil
}

func formatTask(user *model.User, task model.Task, n int, now time.Time, showCategory bool) string {
	var b strings.Builder

	icon := iconDefault
	switch {
	case task.Done:
		icon = iconDone
	case task.Deadline != nil:
		d := task.Deadline.In(now.Location())
		if now.After(d) {
			icon = iconOverdue
		} else if d.Sub(now) <= 48*time.Hour {
			icon = iconDue
		}
	}

	name := escape(normalizeTitle(task.Name))
	if task.Done {
		name = "<s>" + name + "</s>"
	}
	b.WriteString(fmt.Sprintf("%s <b>#%d</b> %s", icon, n, name))
	if showCategory {
		if category, ok := projection.CategoryOf(user, task); ok {
			b.WriteString(fmt.Sprintf(" <i>(%s)</i>", escape(category.Name)))
		}
	}
	b.WriteByte('\n')

	if task.Deadline != nil && !task.Done {
		d := task.Deadline.In(now.Location())
		if now.After(d) {
			b.WriteString(fmt.Sprintf("   ⏰ Deadline: %s, <b>overdue</b>\n", d.Format("2006-01-02")))
		} else {
			daysLeft := int(d.Sub(now).Hours()/24) + 1
			b.WriteString(fmt.Sprintf("   ⏰ Deadline: %s · ≈%d days left\n", d.Format("2006-01-02"), daysLeft))
		}
	}
	if task.Description != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(task.Description)))
	}
	return b.String()
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func categoryLabel(name string) string {
	base := strings.TrimSpace(name)
	var icon string
	switch strings.ToLower(base) {
	case "study", "school":
		icon = "🎓"
	case "work":
		icon = "💼"
	case "shopping":
		icon = "🛒"
	case "health":
		icon = "🩺"
	case "personal", "home":
		icon = "🧩"
	default:
		icon = "🏷️"
	}
	return fmt.Sprintf("%s %s", icon, escape(base))
}
