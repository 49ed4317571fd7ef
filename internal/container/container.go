package container

import (
	"go.uber.org/zap"

	app "scan-segmenter/internal/application"
)

type Container struct {
	SegmentationService *app.SegmentationService
	RunService          *app.RunService
}

func New(deps app.SegmentationDeps, log *zap.Logger) *Container {
	segmentationService := app.NewSegmentationService(deps, log)
	runService := app.NewRunService(deps.Runs)

	return &Container{
		SegmentationService: segmentationService,
		RunService:          runService,
	}
}
