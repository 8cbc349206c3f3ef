// Package errs collects the sentinel error values and error-kind taxonomy
// shared across the indexer, context engine, edit engine and session
// coordinator (spec.md §7). Components wrap these with fmt.Errorf("...: %w")
// so callers can still errors.Is/errors.As against the sentinel.
package errs

import "errors"

// Kind classifies an error for the purposes of spec.md §7's propagation
// policy: per-item kinds never abort a batch, whole-batch kinds do.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfigMissing
	KindStoreUnavailable
	KindParseFailure
	KindEmbedFailure
	KindEditSearchMiss
	KindEditConflict
	KindIOError
	KindCancelled
	KindProviderError
)

func (k Kind) String() string {
	switch k {
	case KindConfigMissing:
		return "ConfigMissing"
	case KindStoreUnavailable:
		return "StoreUnavailable"
	case KindParseFailure:
		return "ParseFailure"
	case KindEmbedFailure:
		return "EmbedFailure"
	case KindEditSearchMiss:
		return "EditSearchMiss"
	case KindEditConflict:
		return "EditConflict"
	case KindIOError:
		return "IOError"
	case KindCancelled:
		return "Cancelled"
	case KindProviderError:
		return "ProviderError"
	default:
		return "Unknown"
	}
}

// PerItem reports whether errors of this kind are per-item (logged, counted,
// skipped) rather than whole-batch aborting, per spec.md §7.
func (k Kind) PerItem() bool {
	switch k {
	case KindParseFailure, KindEmbedFailure, KindEditSearchMiss:
		return true
	default:
		return false
	}
}

var (
	ErrConfigMissing    = errors.New("required configuration is missing")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrNotFound         = errors.New("not found")
	ErrEmptyID          = errors.New("id cannot be empty")
	ErrSearchMiss       = errors.New("search text not found")
	ErrEditConflict     = errors.New("edit target already exists")
	ErrCancelled        = errors.New("operation cancelled")
	ErrSessionLocked    = errors.New("session is locked by another turn")
	ErrEmptySnapshot    = errors.New("every context source failed")
	ErrEmbedFailure     = errors.New("embedding failed")
)
