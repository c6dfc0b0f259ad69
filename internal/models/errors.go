package models

import "errors"

// ErrStoreUnavailable marks persistence-layer failures. Callers abort the
// current batch when they see it; per-job and per-rule errors never carry it.
var ErrStoreUnavailable = errors.New("store unavailable")
