package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	app "plate-reader/internal/application"
	"plate-reader/internal/container"
	"plate-reader/internal/domain/entity"
)

const (
	msgStart = `👋 Привет! Я читаю автомобильные номера по фотографии.

📸 Отправьте фото автомобиля, и я попробую найти и прочитать номер.

📋 Команды:
/check — распознать номер
/history <номер> — прошлые распознавания
/help — справка
/cancel — отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте фото автомобиля
2️⃣ Бот найдёт номерной знак и прочитает его
3️⃣ Вы получите номер, формат (Mercosul или старый) и фото с выделенным номером

💡 Рекомендации:
• Номер должен занимать заметную часть кадра
• Снимайте без сильного наклона
• Избегайте бликов на номере

📋 Команды:
/check — распознать номер
/history <номер> — найти прошлые распознавания
/cancel — отменить операцию`

	msgAwaitingPhoto   = "📸 Отправьте фото автомобиля."
	msgCancelled       = "❌ Операция отменена. Отправьте /check для нового распознавания."
	msgSendPhoto       = "📸 Пожалуйста, отправьте фото автомобиля."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing      = "⏳ Ищу номер на изображении..."
	msgBusy            = "⏳ Предыдущее фото ещё обрабатывается, подождите."
	msgNoPlate         = "🔍 Номер на фото не найден."
	msgProcessingError = "⚠️ Не удалось обработать изображение. Попробуйте сделать другое фото."
	msgHistoryUsage    = "Укажите номер: /history ABC1D23"
	msgHistoryEmpty    = "📭 Записей не найдено."

	historyLimit = 10
)

// Bot представляет Telegram-бота
type Bot struct {
	api         *tgbotapi.BotAPI
	users       *app.UserService
	recognition *app.RecognitionService
	log         *logrus.Logger
}

// NewBot создаёт нового бота
func NewBot(token string, c *container.Container, log *logrus.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Infof("Authorized on account %s", api.Self.UserName)

	return &Bot{
		api:         api,
		users:       c.UserService,
		recognition: c.RecognitionService,
		log:         log,
	}, nil
}

// Run обрабатывает сообщения до отмены ctx
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	// Распознавание идёт в фоне, чтобы не задерживать других пользователей
	if len(msg.Photo) > 0 {
		go b.handlePhoto(ctx, msg)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	var err error
	switch msg.Command() {
	case "start":
		_, err = b.users.Cancel(ctx, msg.From.ID, msg.Chat.ID)
		b.sendMessage(msg.Chat.ID, msgStart)

	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)

	case "check":
		_, err = b.users.BeginCheck(ctx, msg.From.ID, msg.Chat.ID)
		b.sendMessage(msg.Chat.ID, msgAwaitingPhoto)

	case "cancel":
		_, err = b.users.Cancel(ctx, msg.From.ID, msg.Chat.ID)
		b.sendMessage(msg.Chat.ID, msgCancelled)

	case "history":
		err = b.handleHistory(ctx, msg)

	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}

	if err != nil {
		b.log.WithFields(logrus.Fields{"command": msg.Command(), "error": err}).Error("command failed")
	}
}

func (b *Bot) handleHistory(ctx context.Context, msg *tgbotapi.Message) error {
	query := strings.TrimSpace(msg.CommandArguments())
	if query == "" {
		user, err := b.users.Get(ctx, msg.From.ID, msg.Chat.ID)
		if err != nil {
			return err
		}
		query = user.LastPlate
	}
	if query == "" {
		b.sendMessage(msg.Chat.ID, msgHistoryUsage)
		return nil
	}

	records, err := b.recognition.ListReadings(ctx, entity.ReadingFilter{Plate: query, Limit: historyLimit})
	if err != nil {
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return err
	}
	b.sendMessage(msg.Chat.ID, formatHistory(records))
	return nil
}

// handlePhoto распознаёт номер на фото с максимальным разрешением
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if _, err := b.users.StartProcessing(ctx, msg.From.ID, chatID); err != nil {
		if errors.Is(err, app.ErrBusy) {
			b.sendMessage(chatID, msgBusy)
			return
		}
		b.log.WithField("error", err).Error("failed to update user state")
		return
	}

	var plateText string
	defer func() {
		if _, err := b.users.FinishProcessing(context.WithoutCancel(ctx), msg.From.ID, chatID, plateText); err != nil {
			b.log.WithField("error", err).Error("failed to update user state")
		}
	}()

	b.sendMessage(chatID, msgProcessing)

	photo := msg.Photo[len(msg.Photo)-1]
	imageData, err := b.downloadFile(ctx, photo.FileID)
	if err != nil {
		b.log.WithField("error", err).Error("failed to download photo")
		b.sendMessage(chatID, msgProcessingError)
		return
	}

	out, err := b.recognition.Recognize(ctx, imageData, msg.Time(), nil)
	if out == nil {
		b.log.WithFields(logrus.Fields{"chat_id": chatID, "error": err}).Warn("recognition failed")
		b.sendMessage(chatID, msgProcessingError)
		return
	}
	if err != nil {
		b.log.WithField("error", err).Error("reading was not persisted")
	}

	caption := formatReading(out)
	if out.Reading.Found() {
		plateText = out.Reading.Text
	}
	if out.Annotated == nil {
		b.sendMessage(chatID, caption)
		return
	}
	b.sendPhoto(chatID, out.Annotated, caption)
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.WithField("error", err).Error("failed to send message")
	}
}

func (b *Bot) sendPhoto(chatID int64, data []byte, caption string) {
	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "plate.jpg", Bytes: data})
	msg.Caption = caption
	if _, err := b.api.Send(msg); err != nil {
		b.log.WithField("error", err).Error("failed to send photo")
	}
}

func formatName(f entity.PlateFormat) string {
	switch f {
	case entity.FormatMercosul:
		return "Mercosul"
	case entity.FormatOld:
		return "старый (LLL-NNNN)"
	default:
		return "неизвестный"
	}
}

func formatReading(out *app.RecognitionOutput) string {
	r := out.Reading
	if r.Status == entity.StatusNoCandidate {
		return msgNoPlate
	}
	if !r.Found() {
		return fmt.Sprintf("🔍 Номер не прочитан: проверено кандидатов — %d.", len(r.Attempts))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🚘 Номер: %s\n", r.Text)
	fmt.Fprintf(&sb, "Формат: %s\n", formatName(r.Format))
	fmt.Fprintf(&sb, "Уверенность: %.0f%%", r.Confidence*100)
	if len(r.Interpretations) > 1 {
		alts := make([]string, 0, len(r.Interpretations)-1)
		for _, in := range r.Interpretations {
			if in.Text != r.Text {
				alts = append(alts, in.Text)
			}
		}
		if len(alts) > 0 {
			fmt.Fprintf(&sb, "\nДругие варианты: %s", strings.Join(alts, ", "))
		}
	}
	if out.Duplicate {
		sb.WriteString("\nℹ️ Этот номер уже сохранён недавно.")
	}
	return sb.String()
}

func formatHistory(records []entity.ReadingRecord) string {
	if len(records) == 0 {
		return msgHistoryEmpty
	}
	var sb strings.Builder
	sb.WriteString("📋 Последние распознавания:")
	for _, rec := range records {
		fmt.Fprintf(&sb, "\n%s · %s · %.0f%%", rec.Plate, rec.CapturedAt.Format(time.DateTime), rec.Confidence*100)
	}
	return sb.String()
}
