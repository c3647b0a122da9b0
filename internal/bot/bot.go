package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"todo-app/internal/config"
	"todo-app/internal/model"
	"todo-app/internal/projection"
	"todo-app/internal/service"
	"todo-app/internal/state"
)

// telegramAPI is the subset of *tgbotapi.BotAPI the bot uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Store is the state container the bot renders and dispatches to.
type Store interface {
	service.Dispatcher
	Subscribe(l state.Listener) (unsubscribe func())
}

// Bot is the Telegram view of the todo list. It serves a single owner.
type Bot struct {
	api         telegramAPI
	store       Store
	taskSvc     *service.TaskService
	categorySvc *service.CategoryService
	reminderSvc *service.ReminderService
	config      config.Config
	httpClient  *http.Client
	now         func() time.Time
	after       func(time.Duration) <-chan time.Time

	mu           sync.Mutex
	conversation *conversationState
	confirmation *confirmationRequest
	tasksLabel   string
	reading      *readSession
	unsubscribe  func()
}

func New(token string, store Store, cfg config.Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return newBot(api, store, cfg), nil
}

func newBot(api telegramAPI, store Store, cfg config.Config) *Bot {
	categorySvc := service.NewCategoryService(store)
	b := &Bot{
		api:         api,
		store:       store,
		taskSvc:     service.NewTaskService(store, categorySvc),
		categorySvc: categorySvc,
		reminderSvc: service.NewReminderService(store),
		config:      cfg,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		now:         time.Now,
		after:       time.After,
		tasksLabel:  tasksMenuLabel(store.Current()),
	}
	b.unsubscribe = store.Subscribe(b.onSnapshot)
	return b
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	b.Close()
	return nil
}

// Close detaches the bot from the store and stops any reading in progress.
func (b *Bot) Close() {
	b.cancelReadAloud()
	b.mu.Lock()
	unsubscribe := b.unsubscribe
	b.unsubscribe = nil
	b.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			log.Printf("handle callback: %v", err)
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			log.Printf("handle message: %v", err)
		}
	}
}

// HandleEffect executes side effects requested by the store.
func (b *Bot) HandleEffect(e state.Effect) {
	switch e.Kind {
	case state.EffectCancelSpeech:
		if b.cancelReadAloud() {
			log.Println("[info] read aloud cancelled")
		}
	case state.EffectNotify:
		if b.config.OwnerID == 0 {
			return
		}
		if err := b.sendText(b.config.OwnerID, "🔔 "+escape(e.Message)); err != nil {
			log.Printf("send notification: %v", err)
		}
	default:
		log.Printf("unknown effect %s", e.Kind)
	}
}

// SendDailyReport sends the summary of the current snapshot to the owner.
func (b *Bot) SendDailyReport(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.sendText(b.config.OwnerID, b.reminderSvc.Summary(b.now()))
}

func (b *Bot) onSnapshot(user *model.User) {
	label := tasksMenuLabel(user)
	b.mu.Lock()
	b.tasksLabel = label
	b.mu.Unlock()
}

func (b *Bot) isOwner(from *tgbotapi.User) bool {
	return from != nil && from.ID == b.config.OwnerID
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	if !b.isOwner(msg.From) {
		log.Printf("[info] ignored message from %d", msg.From.ID)
		return b.sendPlain(msg.Chat.ID, "This is a private todo list.")
	}

	if msg.Document != nil {
		return b.handleImport(ctx, msg)
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation()
		b.clearConfirmation()
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		log.Printf("[info] command /%s %s", msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(); ok {
		return b.handleConfirmationResponse(msg, pending)
	}

	if conv := b.getConversation(); conv != nil {
		log.Printf("[info] conversation step %d", conv.stage)
		return b.handleConversation(msg, conv)
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Send /newtask to add a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "help":
		return b.handleHelp(chatID)
	case "tasks":
		return b.sendTaskList(chatID)
	case "task":
		return b.handleTaskDetails(chatID, args)
	case "newtask":
		return b.startNewTaskConversation(chatID)
	case "done":
		return b.handleDone(chatID, args)
	case "delete":
		return b.handleDelete(chatID, args)
	case "categories":
		return b.handleCategories(chatID)
	case "addcategory":
		return b.handleAddCategory(chatID, args)
	case "delcategory":
		return b.handleDeleteCategory(chatID, args)
	case "settings":
		return b.sendSettings(chatID)
	case "volume":
		return b.handleVolume(chatID, args)
	case "voice":
		return b.handleVoice(chatID, args)
	case "name":
		return b.handleName(chatID, args)
	case "photo":
		return b.handlePhoto(chatID, args)
	case "profile":
		return b.handleProfile(chatID)
	case "readaloud":
		return b.startReadAloud(chatID)
	case "stop":
		if b.cancelReadAloud() {
			return nil
		}
		return b.sendText(chatID, "Nothing is being read.")
	case "export":
		return b.handleExport(chatID)
	case "report":
		return b.SendDailyReport(ctx)
	case "cancel":
		b.clearConversation()
		b.clearConfirmation()
		return b.sendText(chatID, "⏪ Input cancelled.")
	default:
		return b.sendText(chatID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	name := strings.TrimSpace(b.store.Current().Name)
	if name == "" {
		name = strings.TrimSpace(msg.From.FirstName)
	}
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf("👋 Hi, %s!\n<b>I keep your todo list.</b>\n\n%s", escape(name), commandList)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(chatID int64) error {
	return b.sendText(chatID, "ℹ️ <b>Commands</b>\n"+commandList+"\n\nSend an exported JSON file to import it.")
}

const commandList = "• /newtask - add a task step by step\n" +
	"• /tasks - show tasks, toggle or delete with the buttons\n" +
	"• /task &lt;n&gt; - task details\n" +
	"• /done &lt;n&gt; - toggle task n\n" +
	"• /delete &lt;n&gt; - delete task n\n" +
	"• /categories, /addcategory &lt;name&gt; [#color], /delcategory &lt;name&gt;\n" +
	"• /settings, /volume &lt;0-1&gt;, /voice &lt;name&gt;\n" +
	"• /profile, /name &lt;name&gt;, /photo &lt;url&gt;\n" +
	"• /readaloud, /stop - read open tasks\n" +
	"• /export - download your data\n" +
	"• /report - daily summary now\n" +
	"• /cancel - cancel the current input"

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch {
	case text == strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(msg.Chat.ID)
	case strings.HasPrefix(text, strings.ToLower(menuLabelTasks)):
		return true, b.sendTaskList(msg.Chat.ID)
	case text == strings.ToLower(menuLabelSettings):
		return true, b.sendSettings(msg.Chat.ID)
	case text == strings.ToLower(menuLabelProfile):
		return true, b.handleProfile(msg.Chat.ID)
	default:
		return false, nil
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}
	if !b.isOwner(cb.From) {
		return nil
	}

	chatID := cb.Message.Chat.ID
	data := cb.Data
	switch {
	case strings.HasPrefix(data, cbTogglePrefix):
		log.Printf("[info] callback toggle task=%s", strings.TrimPrefix(data, cbTogglePrefix))
		return b.toggleTaskAndRefresh(chatID, strings.TrimPrefix(data, cbTogglePrefix))
	case strings.HasPrefix(data, cbDeletePrefix):
		log.Printf("[info] callback delete request task=%s", strings.TrimPrefix(data, cbDeletePrefix))
		return b.askDeleteConfirmation(chatID, strings.TrimPrefix(data, cbDeletePrefix))
	case strings.HasPrefix(data, cbSettingPrefix):
		key := model.SettingKey(strings.TrimPrefix(data, cbSettingPrefix))
		log.Printf("[info] callback toggle setting=%s", key)
		return b.toggleSetting(chatID, cb.Message.MessageID, key)
	default:
		return nil
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = b.mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendPlain(chatID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	if _, err := b.api.Send(msg); err != nil {
		return err
	}
	return b.sendMenuPlaceholder(chatID)
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendMenuPlaceholder(chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, "🔹 Main menu")
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = b.mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

// sendError turns a store error into a message for the owner.
func (b *Bot) sendError(chatID int64, err error) error {
	var text string
	switch {
	case errors.Is(err, state.ErrNotFound):
		text = "Not found. It may have been deleted already."
	case errors.Is(err, state.ErrValidation):
		text = "⚠️ " + escape(strings.TrimPrefix(err.Error(), state.ErrValidation.Error()+": "))
	default:
		log.Printf("update failed: %v", err)
		text = "Something went wrong, try again."
	}
	return b.sendText(chatID, text)
}

func (b *Bot) getConfirmation() (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.confirmation == nil {
		return confirmationRequest{}, false
	}
	return *b.confirmation, true
}

func (b *Bot) setConfirmation(req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmation = &req
}

func (b *Bot) clearConfirmation() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmation = nil
}

func (b *Bot) setConversation(conv *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversation = conv
}

func (b *Bot) getConversation() *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversation
}

func (b *Bot) clearConversation() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversation = nil
}

func tasksMenuLabel(user *model.User) string {
	if user.AppSettings().AppBadge {
		if badge, ok := projection.TaskBadge(user); ok {
			return fmt.Sprintf("%s (%s)", menuLabelTasks, badge)
		}
	}
	return menuLabelTasks
}

func escape(s string) string {
	return html.EscapeString(s)
}
