// This file holds the helpers that decode request bodies, path values and
// listing parameters.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"webbudget/internal/core"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads one JSON object from the body into dst. Unknown fields
// are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// pathID parses the named path value as a positive int64.
func pathID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.PathValue(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// queryID parses an optional positive integer query parameter; 0 when absent.
func queryID(q url.Values, name string) (int64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// ParsePageQuery reads filter, offset, limit, sort and dir from the query
// string. Invalid numbers fall back to the defaults.
func ParsePageQuery(query url.Values) core.PageQuery {
	q := core.PageQuery{
		Filter:        sanitizeInput(query.Get("filter")),
		SortField:     sanitizeInput(query.Get("sort")),
		SortDirection: strings.ToLower(strings.TrimSpace(query.Get("dir"))),
	}
	if v := strings.TrimSpace(query.Get("offset")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.Offset = n
		}
	}
	if v := strings.TrimSpace(query.Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.Limit = n
		}
	}
	return q.Normalize()
}

// parseMoney parses an optional amount field; empty means zero.
func parseMoney(field, s string) (core.Money, error) {
	if strings.TrimSpace(s) == "" {
		return core.Zero, nil
	}
	m, err := core.ParseMoney(s)
	if err != nil {
		return core.Zero, fmt.Errorf("%s: %w", field, err)
	}
	return m, nil
}

// parseDate parses an optional yyyy-mm-dd field; empty means the zero date.
func parseDate(field, s string) (core.Date, error) {
	if strings.TrimSpace(s) == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, fmt.Errorf("%s: invalid date %q", field, s)
	}
	return d, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
