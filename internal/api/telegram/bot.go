package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"scan-segmenter/internal/domain/entity"
)

const (
	msgStart = `👋 Привет! Я бот для сегментации КТ-снимков.

📎 Отправьте мне DICOM-файл (.dcm) документом, и я верну превью и контур найденной области.

📋 Команды:
/help — справка
/history — последние обработки`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте файл .dcm как документ (не как фото)
2️⃣ Бот нормализует снимок и прогонит его через модель
3️⃣ Вы получите превью (JPEG) и контур (SVG)

📋 Команды:
/history — последние обработки`

	msgSendDocument    = "📎 Пожалуйста, отправьте DICOM-файл (.dcm) документом."
	msgNotDICOM        = "⚠️ Файл должен быть в формате DICOM (.dcm)."
	msgTooLarge        = "⚠️ Файл слишком большой."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing      = "⏳ Обрабатываю снимок..."
	msgNoHistory       = "📭 История пуста."
	msgProcessingError = "⚠️ Не удалось обработать снимок: %s"
)

// historyLimit сколько записей показывать в /history
const historyLimit = 10

// Segmentation обработка одной загрузки с результатами этого запуска
type Segmentation interface {
	ProcessRendered(ctx context.Context, upload entity.Upload) (*entity.Run, *entity.Rendered, error)
}

// sender отправка сообщений; реализуется *tgbotapi.BotAPI
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// History чтение истории обработки
type History interface {
	Recent(ctx context.Context, limit int) ([]*entity.Run, error)
}

// Bot представляет Telegram-бота
type Bot struct {
	api            *tgbotapi.BotAPI
	sender         sender
	segmentation   Segmentation
	history        History
	maxUploadBytes int64
	client         *http.Client
	log            *zap.Logger
}

// NewBot создаёт нового бота
func NewBot(token string, segmentation Segmentation, history History, maxUploadBytes int64, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Info("Authorized on account", zap.String("username", api.Self.UserName))

	return &Bot{
		api:            api,
		sender:         api,
		segmentation:   segmentation,
		history:        history,
		maxUploadBytes: maxUploadBytes,
		client:         &http.Client{},
		log:            log,
	}, nil
}

// Run запускает основной цикл обработки сообщений до отмены ctx
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
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
	// Обработка команд
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	// Обработка документа
	if msg.Document != nil {
		b.handleDocument(ctx, msg)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendDocument)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.sendMessage(msg.Chat.ID, msgStart)

	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)

	case "history":
		runs, err := b.history.Recent(ctx, historyLimit)
		if err != nil {
			b.log.Error("Error listing runs", zap.Error(err))
			b.sendMessage(msg.Chat.ID, fmt.Sprintf(msgProcessingError, err))
			return
		}
		b.sendMessage(msg.Chat.ID, formatHistory(runs))

	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}
}

// handleDocument скачивает DICOM и запускает конвейер
func (b *Bot) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	doc := msg.Document
	if err := (entity.Upload{Filename: doc.FileName}).Validate(); err != nil {
		b.sendMessage(msg.Chat.ID, msgNotDICOM)
		return
	}
	if b.maxUploadBytes > 0 && int64(doc.FileSize) > b.maxUploadBytes {
		b.sendMessage(msg.Chat.ID, msgTooLarge)
		return
	}

	b.sendMessage(msg.Chat.ID, msgProcessing)

	data, err := b.downloadFile(ctx, doc.FileID)
	if err != nil {
		b.log.Error("Error downloading document", zap.Error(err))
		b.sendMessage(msg.Chat.ID, fmt.Sprintf(msgProcessingError, "download failed"))
		return
	}

	b.processDocument(ctx, msg.Chat.ID, entity.Upload{Filename: doc.FileName, Data: data})
}

// processDocument запускает конвейер и отправляет превью и контур этого запуска.
func (b *Bot) processDocument(ctx context.Context, chatID int64, upload entity.Upload) {
	run, rendered, err := b.segmentation.ProcessRendered(ctx, upload)
	if err != nil {
		b.sendMessage(chatID, fmt.Sprintf(msgProcessingError, err))
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: entity.PreviewFilename, Bytes: rendered.Preview})
	photo.Caption = formatRun(run)
	if _, err := b.sender.Send(photo); err != nil {
		b.log.Error("Error sending preview", zap.Error(err))
	}

	outline := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: entity.OutlineFilename, Bytes: rendered.Outline})
	if _, err := b.sender.Send(outline); err != nil {
		b.log.Error("Error sending outline", zap.Error(err))
	}
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.sender.Send(msg); err != nil {
		b.log.Error("Error sending message", zap.Error(err))
	}
}

// formatRun подпись к превью
func formatRun(run *entity.Run) string {
	return fmt.Sprintf("✅ %s: контуров %d, маска %dx%d, %.1f с",
		run.Filename, run.Contours, run.Width, run.Height, run.Duration().Seconds())
}

// formatHistory список последних обработок
func formatHistory(runs []*entity.Run) string {
	if len(runs) == 0 {
		return msgNoHistory
	}

	var sb strings.Builder
	sb.WriteString("🗂 Последние обработки:\n")
	for _, run := range runs {
		switch run.Status {
		case entity.RunSucceeded:
			fmt.Fprintf(&sb, "\n✅ %s — контуров %d", run.Filename, run.Contours)
		case entity.RunFailed:
			fmt.Fprintf(&sb, "\n❌ %s — %s", run.Filename, run.ErrorKind)
		default:
			fmt.Fprintf(&sb, "\n⏳ %s", run.Filename)
		}
		sb.WriteString(run.StartedAt.Format(" (02.01 15:04)"))
	}
	return sb.String()
}
