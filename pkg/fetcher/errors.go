package fetcher

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAllSourcesExhausted indicates every configured provider failed or
// returned no data for a call.
var ErrAllSourcesExhausted = errors.New("all sources exhausted")

// Attempt records the outcome of one provider in a fallback pass. Err is
// nil when the provider simply had no data.
type Attempt struct {
	Provider string
	Err      error
}

// ExhaustedError is the aggregate failure raised after the full fallback
// chain produced no usable result. It lists every attempted provider with
// its last error.
type ExhaustedError struct {
	Op       string
	Symbol   string
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	var b strings.Builder
	if e.Symbol != "" {
		fmt.Fprintf(&b, "%s %s: %v (", e.Op, e.Symbol, ErrAllSourcesExhausted)
	} else {
		fmt.Fprintf(&b, "%s: %v (", e.Op, ErrAllSourcesExhausted)
	}
	for i, a := range e.Attempts {
		if i > 0 {
			b.WriteString("; ")
		}
		if a.Err != nil {
			fmt.Fprintf(&b, "%s: %v", a.Provider, a.Err)
		} else {
			fmt.Fprintf(&b, "%s: no data", a.Provider)
		}
	}
	b.WriteString(")")
	return b.String()
}

func (e *ExhaustedError) Unwrap() error { return ErrAllSourcesExhausted }
