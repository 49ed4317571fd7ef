package entity

import (
	"errors"
	"fmt"
)

// ErrorKind стадия конвейера, на которой произошла ошибка
type ErrorKind string

const (
	KindInputValidation ErrorKind = "input_validation" // неверный тип файла
	KindWorkspace       ErrorKind = "workspace"        // не удалось создать или заполнить рабочую директорию
	KindDecode          ErrorKind = "decode"           // DICOM не читается
	KindCalibration     ErrorKind = "calibration"      // пиксели есть, но это не 2D-сетка
	KindInference       ErrorKind = "inference"        // ошибка модели
	KindSerialization   ErrorKind = "serialization"    // не удалось записать JPEG/SVG
	KindPublication     ErrorKind = "publication"      // не удалось скопировать в общий каталог
	KindCleanup         ErrorKind = "cleanup"          // не удалось удалить рабочую директорию
	KindUnknown         ErrorKind = "unknown"
)

// ErrNotDICOM возвращается для файлов без расширения .dcm
var ErrNotDICOM = errors.New("file must be in DICOM format")

// PipelineError ошибка конвейера с указанием стадии.
type PipelineError struct {
	Kind ErrorKind
	Err  error
}

// NewError оборачивает err в PipelineError. Уже размеченные ошибки не переразмечаются.
func NewError(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return err
	}
	return &PipelineError{Kind: kind, Err: err}
}

// Errorf создаёт PipelineError с форматированным сообщением.
func Errorf(kind ErrorKind, format string, args ...any) error {
	return &PipelineError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// KindOf возвращает стадию ошибки или KindUnknown.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}
