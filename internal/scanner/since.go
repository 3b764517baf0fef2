package scanner

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var sinceParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ParseSince turns a since expression into an instant. It accepts RFC3339
// timestamps, Go durations counted back from now ("90m"), and English
// phrases such as "2 hours ago" or "yesterday". An empty expression yields
// the zero time.
func ParseSince(expr string, now time.Time) (time.Time, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return time.Time{}, nil
	}

	if t, err := time.Parse(time.RFC3339, expr); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(expr); err == nil {
		return now.Add(-d), nil
	}

	r, err := sinceParser.Parse(expr, now)
	if err != nil || r == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidSince, expr)
	}
	return r.Time, nil
}
