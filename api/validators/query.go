package validators

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/mianhamzaathar/AIFORGE/pkg/errors"
)

// Query reads optional query parameters. Failures are validation errors whose
// details map the parameter name to the problem, the same shape body
// validation uses.
type Query struct {
	values url.Values
}

func QueryOf(r *http.Request) Query {
	return Query{values: r.URL.Query()}
}

func (q Query) String(key string) string {
	return strings.TrimSpace(q.values.Get(key))
}

// Int returns def when key is absent; present values must lie in [lo, hi].
func (q Query) Int(key string, def, lo, hi int) (int, error) {
	raw := q.String(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidParam(key, "must be a whole number")
	}
	if n < lo || n > hi {
		return 0, invalidParam(key, fmt.Sprintf("must be between %d and %d", lo, hi))
	}
	return n, nil
}

// Time accepts an RFC 3339 timestamp or a bare date, returned in UTC. An
// absent key yields nil.
func (q Query) Time(key string) (*time.Time, error) {
	raw := q.String(key)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, invalidParam(key, "must be an RFC 3339 timestamp or YYYY-MM-DD date")
}

func invalidParam(key, problem string) error {
	return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid query parameter %s", key).
		WithDetails(map[string]string{key: problem})
}
