package app

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"scan-segmenter/internal/domain/entity"
	"scan-segmenter/internal/domain/port"
	"scan-segmenter/internal/infrastructure/workspace"
)

// SegmentationDeps зависимости конвейера сегментации
type SegmentationDeps struct {
	Workspaces *workspace.Manager
	Decoder    port.ScanDecoder
	Resampler  port.Resampler
	Segmenter  port.Segmenter
	Tracer     port.ContourTracer
	Renderer   port.ResultRenderer
	Publisher  port.Publisher
	Runs       port.RunRepository
}

// SegmentationService проводит загрузку через весь конвейер:
// DICOM -> HU -> тензор -> модель -> маска -> контуры -> JPEG/SVG -> публикация.
type SegmentationService struct {
	deps  SegmentationDeps
	log   *zap.Logger
	spans trace.Tracer
	now   func() time.Time
}

// NewSegmentationService создаёт сервис сегментации.
func NewSegmentationService(deps SegmentationDeps, log *zap.Logger) *SegmentationService {
	return &SegmentationService{
		deps:  deps,
		log:   log,
		spans: otel.Tracer("scan-segmenter/segmentation"),
		now:   time.Now,
	}
}

// outcome итог успешного прохода конвейера
type outcome struct {
	bundle     *entity.ResultBundle
	foreground int
}

// Process обрабатывает одну загрузку. Возвращает запись истории всегда,
// кроме ошибки валидации: тогда рабочая директория не создаётся.
func (s *SegmentationService) Process(ctx context.Context, upload entity.Upload) (*entity.Run, error) {
	return s.process(ctx, upload, nil)
}

// ProcessRendered как Process, но дополнительно возвращает превью и контур именно этого
// запуска, а не содержимое общего каталога, которое могут перезаписать параллельные запросы.
func (s *SegmentationService) ProcessRendered(ctx context.Context, upload entity.Upload) (*entity.Run, *entity.Rendered, error) {
	rendered := &entity.Rendered{}
	run, err := s.process(ctx, upload, rendered)
	if err != nil {
		return run, nil, err
	}
	return run, rendered, nil
}

func (s *SegmentationService) process(ctx context.Context, upload entity.Upload, rendered *entity.Rendered) (*entity.Run, error) {
	if err := upload.Validate(); err != nil {
		s.log.Warn("Upload rejected",
			zap.String("filename", upload.Filename),
			zap.Error(err))
		return nil, err
	}

	run := entity.NewRun(uuid.NewString(), upload.BaseName(), s.now())
	log := s.log.With(zap.String("run_id", run.ID), zap.String("filename", run.Filename))
	s.saveRun(ctx, log, run)

	ctx, span := s.spans.Start(ctx, "segmentation.process",
		trace.WithAttributes(
			attribute.String("run.id", run.ID),
			attribute.String("file.name", run.Filename),
			attribute.Int("file.size", len(upload.Data)),
		))
	defer span.End()

	var res outcome
	err := s.deps.Workspaces.Run(ctx, func(ctx context.Context, ws *workspace.Workspace) error {
		var err error
		res, err = s.pipeline(ctx, log, ws, upload, rendered)
		return err
	})

	if err != nil {
		run.Fail(err, s.now())
		span.RecordError(err)
		span.SetStatus(codes.Error, string(run.ErrorKind))
		log.Error("Segmentation failed",
			zap.String("kind", string(run.ErrorKind)),
			zap.Duration("duration", run.Duration()),
			zap.Error(err))
		s.saveRun(ctx, log, run)
		return run, err
	}

	run.Succeed(res.bundle, res.foreground, s.now())
	span.SetAttributes(attribute.Int("contours", run.Contours))
	log.Info("Segmentation finished",
		zap.Int("contours", run.Contours),
		zap.Int("foreground", run.Foreground),
		zap.Duration("duration", run.Duration()))
	s.saveRun(ctx, log, run)
	return run, nil
}

func (s *SegmentationService) pipeline(ctx context.Context, log *zap.Logger, ws *workspace.Workspace, upload entity.Upload, rendered *entity.Rendered) (outcome, error) {
	var (
		path     string
		img      *entity.NormalizedImage
		input    *entity.InferenceTensor
		conf     *entity.ConfidenceMap
		mask     *entity.BinaryMask
		contours []entity.Contour
		bundle   *entity.ResultBundle
	)

	steps := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		{"stage", func(ctx context.Context) (err error) {
			path, err = ws.Stage(upload)
			return err
		}},
		{"decode", func(ctx context.Context) error {
			raw, err := s.deps.Decoder.DecodeFile(path)
			if err != nil {
				return entity.NewError(entity.KindDecode, err)
			}
			img, err = entity.Normalize(raw)
			if err != nil {
				return err
			}
			log.Debug("Scan decoded",
				zap.Int("width", img.Width()),
				zap.Int("height", img.Height()),
				zap.Bool("rescale", raw.Rescale != nil),
				zap.Float64("mean_hu", entity.DenormalizeHU(stat.Mean(img.Data.RawMatrix().Data, nil))))
			return nil
		}},
		{"prepare", func(ctx context.Context) (err error) {
			grid := s.deps.Resampler.Resample(img.Data, entity.TensorWidth, entity.TensorHeight)
			input, err = entity.NewInferenceTensor(grid)
			return entity.NewError(entity.KindCalibration, err)
		}},
		{"infer", func(ctx context.Context) (err error) {
			conf, err = s.deps.Segmenter.Segment(ctx, input)
			if err != nil {
				return entity.NewError(entity.KindInference, err)
			}
			if conf == nil {
				return entity.Errorf(entity.KindInference, "model returned no output")
			}
			return entity.NewError(entity.KindInference, conf.CheckShape(entity.ModelShape))
		}},
		{"trace", func(ctx context.Context) error {
			mask = conf.Binarize()
			contours = s.deps.Tracer.Trace(mask)
			log.Debug("Contours traced",
				zap.Int("foreground", mask.Count()),
				zap.Int("contours", len(contours)))
			return nil
		}},
		{"render", func(ctx context.Context) (err error) {
			bundle, err = s.deps.Renderer.Render(ws.ResultsDir(), img, mask, contours)
			return entity.NewError(entity.KindSerialization, err)
		}},
		{"collect", func(ctx context.Context) (err error) {
			if rendered == nil {
				return nil
			}
			if rendered.Preview, err = os.ReadFile(bundle.PreviewPath); err != nil {
				return entity.NewError(entity.KindSerialization, err)
			}
			if rendered.Outline, err = os.ReadFile(bundle.OutlinePath); err != nil {
				return entity.NewError(entity.KindSerialization, err)
			}
			return nil
		}},
		{"publish", func(ctx context.Context) error {
			return ws.Publish(ctx, s.deps.Publisher, bundle.Artifacts())
		}},
	}

	for _, step := range steps {
		if err := s.step(ctx, step.name, step.fn); err != nil {
			return outcome{}, err
		}
	}
	return outcome{bundle: bundle, foreground: mask.Count()}, nil
}

// step выполняет стадию в отдельном спане. Отмена контекста прерывает конвейер между стадиями.
func (s *SegmentationService) step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return entity.NewError(entity.KindUnknown, err)
	}

	ctx, span := s.spans.Start(ctx, "segmentation."+name)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(entity.KindOf(err)))
		return err
	}
	return nil
}

func (s *SegmentationService) saveRun(ctx context.Context, log *zap.Logger, run *entity.Run) {
	// Ошибка хранилища истории только логируется.
	if err := s.deps.Runs.Save(context.WithoutCancel(ctx), run); err != nil {
		log.Warn("Failed to save run", zap.Error(err))
	}
}
