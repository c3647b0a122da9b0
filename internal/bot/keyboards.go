package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"todo-app/internal/model"
)

const (
	cbTogglePrefix  = "toggle:"
	cbDeletePrefix  = "delete:"
	cbSettingPrefix = "set:"
)

const (
	btnSkip           = "⏭️ Skip"
	btnConfirm        = "✅ Confirm"
	btnCancel         = "↩️ Cancel"
	btnCancelDialog   = "⏪ Stop input"
	iconDefault       = "🟢"
	iconDue           = "⏳"
	iconOverdue       = "⚠️"
	iconDone          = "✔️"
	menuLabelNewTask  = "➕ Add Task"
	menuLabelTasks    = "📋 Tasks"
	menuLabelSettings = "⚙️ Settings"
	menuLabelProfile  = "👤 Profile"
)

var defaultCategories = []string{"Work", "Study", "Shopping", "Health"}

func (b *Bot) mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	b.mu.Lock()
	tasks := b.tasksLabel
	b.mu.Unlock()
	if tasks == "" {
		tasks = menuLabelTasks
	}

	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewTask),
			tgbotapi.NewKeyboardButton(tasks),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelSettings),
			tgbotapi.NewKeyboardButton(menuLabelProfile),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

// categoryKeyboard offers the existing categories, or a few common ones when there are none.
func categoryKeyboard(categories []model.Category) tgbotapi.ReplyKeyboardMarkup {
	names := defaultCategories
	if len(categories) > 0 {
		names = make([]string, 0, len(categories))
		for _, c := range categories {
			names = append(names, c.Name)
		}
	}

	var rows [][]tgbotapi.KeyboardButton
	for i := 0; i < len(names); i += 2 {
		row := tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(names[i]))
		if i+1 < len(names) {
			row = append(row, tgbotapi.NewKeyboardButton(names[i+1]))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnSkip),
		tgbotapi.NewKeyboardButton(btnCancelDialog),
	))

	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func settingsKeyboard(s model.AppSettings) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(model.ToggleKeys))
	for _, key := range model.ToggleKeys {
		mark := "⬜"
		if s.Bool(key) {
			mark = "✅"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s %s", mark, key.Label()), cbSettingPrefix+string(key)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "confirm" || value == "yes"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "cancel" || value == "no"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "stop input"
}
