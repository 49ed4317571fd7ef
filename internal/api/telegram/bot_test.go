package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scan-segmenter/internal/domain/entity"
)

func TestFormatHistory(t *testing.T) {
	require.Equal(t, msgNoHistory, formatHistory(nil))

	start := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	ok := entity.NewRun("1", "liver.dcm", start)
	ok.Succeed(&entity.ResultBundle{Width: 256, Height: 256, Contours: 2}, 100, start.Add(time.Second))
	failed := entity.NewRun("2", "broken.dcm", start)
	failed.Fail(entity.NewError(entity.KindDecode, errors.New("bad")), start)
	pending := entity.NewRun("3", "new.dcm", start)

	out := formatHistory([]*entity.Run{ok, failed, pending})
	require.Contains(t, out, "✅ liver.dcm — контуров 2 (01.05 12:30)")
	require.Contains(t, out, "❌ broken.dcm — decode")
	require.Contains(t, out, "⏳ new.dcm")
}

func TestFormatRun(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	run := entity.NewRun("1", "liver.dcm", start)
	run.Succeed(&entity.ResultBundle{Width: 256, Height: 256, Contours: 1}, 10, start.Add(1500*time.Millisecond))

	require.Equal(t, "✅ liver.dcm: контуров 1, маска 256x256, 1.5 с", formatRun(run))
}

type recordingSender struct {
	sent []tgbotapi.Chattable
}

func (r *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	r.sent = append(r.sent, c)
	return tgbotapi.Message{}, nil
}

type segmentationFunc func(ctx context.Context, upload entity.Upload) (*entity.Run, *entity.Rendered, error)

func (f segmentationFunc) ProcessRendered(ctx context.Context, upload entity.Upload) (*entity.Run, *entity.Rendered, error) {
	return f(ctx, upload)
}

func TestProcessDocument_SendsOwnRunArtifacts(t *testing.T) {
	out := &recordingSender{}
	bot := &Bot{
		sender: out,
		segmentation: segmentationFunc(func(ctx context.Context, upload entity.Upload) (*entity.Run, *entity.Rendered, error) {
			run := entity.NewRun("run-a", upload.Filename, time.Now())
			run.Succeed(&entity.ResultBundle{Width: 256, Height: 256, Contours: 1}, 10, time.Now())
			return run, &entity.Rendered{Preview: []byte("jpeg-of-a"), Outline: []byte("svg-of-a")}, nil
		}),
		log: zap.NewNop(),
	}

	bot.processDocument(context.Background(), 42, entity.Upload{Filename: "a.dcm", Data: []byte("dicom")})

	require.Len(t, out.sent, 2)

	photo, ok := out.sent[0].(tgbotapi.PhotoConfig)
	require.True(t, ok, "first message must be a photo, got %T", out.sent[0])
	require.Equal(t, int64(42), photo.ChatID)
	require.Equal(t, tgbotapi.FileBytes{Name: entity.PreviewFilename, Bytes: []byte("jpeg-of-a")}, photo.File)
	require.Contains(t, photo.Caption, "a.dcm")

	doc, ok := out.sent[1].(tgbotapi.DocumentConfig)
	require.True(t, ok, "second message must be a document, got %T", out.sent[1])
	require.Equal(t, tgbotapi.FileBytes{Name: entity.OutlineFilename, Bytes: []byte("svg-of-a")}, doc.File)
}

func TestProcessDocument_ReportsFailure(t *testing.T) {
	out := &recordingSender{}
	bot := &Bot{
		sender: out,
		segmentation: segmentationFunc(func(ctx context.Context, upload entity.Upload) (*entity.Run, *entity.Rendered, error) {
			return nil, nil, entity.NewError(entity.KindDecode, errors.New("pixel data is missing"))
		}),
		log: zap.NewNop(),
	}

	bot.processDocument(context.Background(), 7, entity.Upload{Filename: "b.dcm"})

	require.Len(t, out.sent, 1)
	msg, ok := out.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	require.Contains(t, msg.Text, "decode: pixel data is missing")
}
