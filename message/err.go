package message

import (
	"errors"

	"github.com/kingpinzs/digital-archaeology-sub011/translate"
)

var f = translate.From

var (
	ErrProgramEmpty    = errors.New(f("program is empty"))
	ErrSpeedNegative   = errors.New(f("speed must be >= 0"))
	ErrSnapshotMissing = errors.New(f("snapshot missing"))
)
