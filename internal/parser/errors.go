package parser

import "errors"

// ErrUnsupported is returned by Registry.Parse when no front-end is
// registered for a file's extension. It is not a spec.md §4.1 ParseFailure
// — the Sync Engine routes these files straight to the Chunker's
// paragraph-splitting fallback instead of recording a parse error.
var ErrUnsupported = errors.New("no parser registered for extension")
