package pipeline

import (
	"github.com/tinylisp/tlc/translate"
)

var f = translate.From

// ErrStage identifies which stage of the pipeline failed.
type ErrStage struct {
	Stage string
	Err   error
}

func (err *ErrStage) Error() string {
	return f("%s: %v", err.Stage, err.Err)
}

func (err *ErrStage) Unwrap() error {
	return err.Err
}
