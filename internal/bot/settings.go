package bot

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"todo-app/internal/model"
	"todo-app/internal/projection"
	"todo-app/internal/state"
	"todo-app/internal/transfer"
)

const (
	profilePictureError = "Error in profile picture URL"
	maxImportSize       = 1 << 20
)

func (b *Bot) sendSettings(chatID int64) error {
	settings := b.store.Current().AppSettings()
	msg := tgbotapi.NewMessage(chatID, settingsText(settings))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = settingsKeyboard(settings)
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) toggleSetting(chatID int64, messageID int, key model.SettingKey) error {
	current := b.store.Current().AppSettings()
	out, err := b.store.Update(state.SetSetting{Key: key, Value: !current.Bool(key)})
	if err != nil {
		return b.sendError(chatID, err)
	}

	settings := out.User.AppSettings()
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, settingsText(settings), settingsKeyboard(settings))
	edit.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Request(edit)
	return err
}

func (b *Bot) handleVolume(chatID int64, args string) error {
	if args == "" {
		volume := b.store.Current().AppSettings().VoiceVolume
		return b.sendText(chatID, fmt.Sprintf("🔈 Volume is %d%%. Change it with /volume 0.8", int(volume*100+0.5)))
	}
	value, err := strconv.ParseFloat(strings.TrimSuffix(args, "%"), 64)
	if err != nil {
		return b.sendText(chatID, "Volume must be a number between 0 and 1, for example /volume 0.5")
	}
	if strings.HasSuffix(args, "%") {
		value /= 100
	}
	out, err := b.store.Update(state.SetSetting{Key: model.SettingVoiceVolume, Value: value})
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, fmt.Sprintf("🔈 Volume set to %d%%.", int(out.User.AppSettings().VoiceVolume*100+0.5)))
}

func (b *Bot) handleVoice(chatID int64, args string) error {
	if args == "" {
		return b.sendText(chatID, fmt.Sprintf("🗣 Voice: <code>%s</code>", escape(b.store.Current().AppSettings().Voice)))
	}
	if _, err := b.store.Update(state.SetSetting{Key: model.SettingVoice, Value: args}); err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, fmt.Sprintf("🗣 Voice set to <code>%s</code>.", escape(args)))
}

func (b *Bot) handleName(chatID int64, args string) error {
	user := b.store.Current()
	if _, err := b.store.Update(state.UpdateProfile{Name: args, ProfilePicture: user.ProfilePicture}); err != nil {
		return b.sendError(chatID, err)
	}
	if args == "" {
		return b.sendText(chatID, "Name cleared.")
	}
	return b.sendText(chatID, fmt.Sprintf("Nice to meet you, %s!", escape(args)))
}

func (b *Bot) handlePhoto(chatID int64, args string) error {
	user := b.store.Current()
	if _, err := b.store.Update(state.UpdateProfile{Name: user.Name, ProfilePicture: args}); err != nil {
		return b.sendError(chatID, err)
	}
	if args == "" {
		return b.sendText(chatID, "Profile picture removed.")
	}
	return b.handleProfile(chatID)
}

// handleProfile shows the avatar. A picture Telegram cannot load is cleared from the profile.
func (b *Bot) handleProfile(chatID int64) error {
	user := b.store.Current()
	avatar := projection.AvatarFor(user)
	caption := profileCaption(user, avatar)

	if avatar.PictureURL != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(avatar.PictureURL))
		photo.Caption = caption
		photo.ParseMode = tgbotapi.ModeHTML
		_, err := b.api.Send(photo)
		if err == nil {
			return nil
		}
		log.Printf("send profile picture: %v", err)
		if _, err := b.store.Update(state.ClearProfilePicture{Cause: profilePictureError}); err != nil {
			return b.sendError(chatID, err)
		}
	}

	initial := avatar.Initial
	if initial == "" {
		initial = "👤"
	}
	return b.sendText(chatID, fmt.Sprintf("<b>[ %s ]</b>\n%s", escape(initial), caption))
}

func profileCaption(user *model.User, avatar projection.Avatar) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>%s</b>\n", escape(avatar.Alt)))
	label, ok := projection.TaskBadge(user)
	if !ok {
		label = "0"
	}
	sb.WriteString(fmt.Sprintf("📋 %s open of %d tasks\n", label, len(user.Tasks)))
	sb.WriteString(fmt.Sprintf("📂 %d categories\n", len(user.Categories)))
	sb.WriteString(fmt.Sprintf("🕓 Since %s", user.CreatedAt.Format("2006-01-02")))
	return sb.String()
}

func (b *Bot) startReadAloud(chatID int64) error {
	user := b.store.Current()
	settings := user.AppSettings()
	if !settings.EnableReadAloud {
		return b.sendText(chatID, "Read aloud is off. Turn it on in /settings.")
	}

	var lines []string
	for _, task := range projection.OrderedTasks(user) {
		if task.Done {
			continue
		}
		line := normalizeTitle(task.Name)
		if task.Description != "" {
			line += ". " + task.Description
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return b.sendText(chatID, "Nothing to read, all tasks are done.")
	}

	ctx, cancel := context.WithCancel(context.Background())
	session := &readSession{cancel: cancel}
	b.mu.Lock()
	if b.reading != nil {
		b.reading.cancel()
	}
	b.reading = session
	b.mu.Unlock()

	header := fmt.Sprintf("🔊 Reading %d tasks with %s at %d%%. /stop to interrupt.",
		len(lines), escape(settings.Voice), int(settings.VoiceVolume*100+0.5))
	if err := b.sendText(chatID, header); err != nil {
		b.finishReading(session)
		return err
	}
	go b.readAloud(ctx, session, chatID, lines)
	return nil
}

func (b *Bot) readAloud(ctx context.Context, session *readSession, chatID int64, lines []string) {
	defer b.finishReading(session)
	delay := b.config.ReadAloudDelay
	for i, line := range lines {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
			case <-b.after(delay):
			}
		}
		if ctx.Err() != nil {
			if err := b.sendPlain(chatID, "🔇 Reading stopped."); err != nil {
				log.Printf("read aloud: %v", err)
			}
			return
		}
		if err := b.sendPlain(chatID, fmt.Sprintf("🔊 %d. %s", i+1, line)); err != nil {
			log.Printf("read aloud: %v", err)
			return
		}
	}
}

type readSession struct {
	cancel context.CancelFunc
}

// finishReading releases session unless a newer reading replaced it.
func (b *Bot) finishReading(session *readSession) {
	session.cancel()
	b.mu.Lock()
	if b.reading == session {
		b.reading = nil
	}
	b.mu.Unlock()
}

// cancelReadAloud stops the reading in progress and reports whether there was one.
func (b *Bot) cancelReadAloud() bool {
	b.mu.Lock()
	session := b.reading
	b.reading = nil
	b.mu.Unlock()
	if session == nil {
		return false
	}
	session.cancel()
	return true
}

func (b *Bot) handleExport(chatID int64) error {
	user := b.store.Current()
	data, err := transfer.Export(user, b.now())
	if err != nil {
		return err
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("todo-export-%s.json", b.now().Format("2006-01-02")),
		Bytes: data,
	})
	doc.Caption = fmt.Sprintf("📦 %d tasks, %d categories", len(user.Tasks), len(user.Categories))
	_, err = b.api.Send(doc)
	return err
}

func (b *Bot) handleImport(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	document := msg.Document
	if !strings.EqualFold(path.Ext(document.FileName), ".json") && document.MimeType != "application/json" {
		return b.sendText(chatID, "Send a .json file created by /export to import it.")
	}
	if document.FileSize > maxImportSize {
		return b.sendText(chatID, "The file is too large to import.")
	}

	url, err := b.api.GetFileDirectURL(document.FileID)
	if err != nil {
		return fmt.Errorf("get file url: %w", err)
	}
	data, err := b.download(ctx, url)
	if err != nil {
		log.Printf("download import: %v", err)
		return b.sendText(chatID, "Could not download the file, try again.")
	}

	intent, err := transfer.Import(data)
	if err != nil {
		return b.sendError(chatID, err)
	}
	out, err := b.store.Update(intent)
	if err != nil {
		return b.sendError(chatID, err)
	}

	log.Printf("[info] imported tasks=%d", out.Imported)
	return b.sendText(chatID, fmt.Sprintf("📥 Imported %d new tasks. You now have %d tasks and %d categories.",
		out.Imported, len(out.User.Tasks), len(out.User.Categories)))
}

func (b *Bot) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImportSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxImportSize {
		return nil, fmt.Errorf("file larger than %d bytes", maxImportSize)
	}
	return data, nil
}

func settingsText(s model.AppSettings) string {
	return fmt.Sprintf("⚙️ <b>Settings</b>\n🗣 Voice: <code>%s</code>\n🔈 Volume: %d%%\n\nTap to switch:",
		escape(s.Voice), int(s.VoiceVolume*100+0.5))
}
