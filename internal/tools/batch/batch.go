package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Result is the outcome for one ID.
type Result struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Summary aggregates the results of one batch.
type Summary struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Skipped    int      `json:"skipped,omitempty"`
	Results    []Result `json:"results"`
}

// ParseIDs reads a parameter that is either one string or an array of
// strings. IDs are trimmed and duplicates are dropped, keeping first-seen
// order.
func ParseIDs(param any, paramName string) ([]string, error) {
	if param == nil {
		return nil, fmt.Errorf("%s is required", paramName)
	}

	var raw []string
	switch v := param.(type) {
	case string:
		raw = []string{v}
	case []string:
		raw = v
	case []any:
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string", paramName, i)
			}
			raw = append(raw, str)
		}
	default:
		return nil, fmt.Errorf("%s must be a string or array of strings", paramName)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s cannot be empty", paramName)
	}

	seen := make(map[string]bool, len(raw))
	ids := make([]string, 0, len(raw))
	for i, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" {
			if len(raw) == 1 {
				return nil, fmt.Errorf("%s cannot be empty", paramName)
			}
			return nil, fmt.Errorf("%s[%d] cannot be empty", paramName, i)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

// Process runs fn for each ID in order. Once ctx is done, or fn fails with an
// error for which stop returns true, the remaining IDs are marked skipped.
// stop may be nil.
func Process(ctx context.Context, ids []string, fn func(ctx context.Context, id string) (string, error), stop func(error) bool) []Result {
	results := make([]Result, 0, len(ids))
	var halt error

	for _, id := range ids {
		if halt == nil {
			halt = ctx.Err()
		}
		if halt != nil {
			results = append(results, Result{ID: id, Status: StatusSkipped, Error: halt.Error()})
			continue
		}

		res, err := fn(ctx, id)
		if err != nil {
			results = append(results, NewErrorResult(id, err))
			if stop != nil && stop(err) {
				halt = err
			}
			continue
		}
		results = append(results, NewSuccessResult(id, res))
	}
	return results
}

// Summarize counts the results by status.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results), Results: results}
	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			s.Successful++
		case StatusSkipped:
			s.Skipped++
		default:
			s.Failed++
		}
	}
	return s
}

// FormatResults renders the summary of results as indented JSON.
func FormatResults(results []Result) string {
	data, _ := json.MarshalIndent(Summarize(results), "", "  ")
	return string(data)
}

// NewSuccessResult creates a success result
func NewSuccessResult(id, message string) Result {
	return Result{ID: id, Status: StatusSuccess, Result: message}
}

// NewErrorResult creates an error result
func NewErrorResult(id string, err error) Result {
	return Result{ID: id, Status: StatusError, Error: err.Error()}
}
