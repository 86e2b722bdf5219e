package batch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDs(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    []string
		wantErr string
	}{
		{name: "single string", input: "msg-1", want: []string{"msg-1"}},
		{name: "array", input: []any{"a", "b", "c"}, want: []string{"a", "b", "c"}},
		{name: "string slice", input: []string{"a", "b"}, want: []string{"a", "b"}},
		{name: "trims and dedupes", input: []any{" a ", "b", "a"}, want: []string{"a", "b"}},
		{name: "nil", input: nil, wantErr: "emailIds is required"},
		{name: "empty string", input: "", wantErr: "emailIds cannot be empty"},
		{name: "empty array", input: []any{}, wantErr: "emailIds cannot be empty"},
		{name: "blank item", input: []any{"a", " "}, wantErr: "emailIds[1] cannot be empty"},
		{name: "non-string item", input: []any{"a", 2}, wantErr: "emailIds[1] must be a string"},
		{name: "wrong type", input: 42, wantErr: "must be a string or array of strings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIDs(tt.input, "emailIds")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProcess(t *testing.T) {
	var calls []string
	fn := func(_ context.Context, id string) (string, error) {
		calls = append(calls, id)
		if id == "bad" {
			return "", errors.New("not found")
		}
		return "moved to trash", nil
	}

	results := Process(context.Background(), []string{"a", "bad", "c"}, fn, nil)

	assert.Equal(t, []string{"a", "bad", "c"}, calls)
	assert.Equal(t, []Result{
		{ID: "a", Status: StatusSuccess, Result: "moved to trash"},
		{ID: "bad", Status: StatusError, Error: "not found"},
		{ID: "c", Status: StatusSuccess, Result: "moved to trash"},
	}, results)
}

func TestProcess_StopSkipsRemaining(t *testing.T) {
	errAuth := errors.New("session expired")
	var calls int
	fn := func(context.Context, string) (string, error) {
		calls++
		return "", errAuth
	}

	results := Process(context.Background(), []string{"a", "b", "c"}, fn, func(err error) bool {
		return errors.Is(err, errAuth)
	})

	assert.Equal(t, 1, calls)
	require.Len(t, results, 3)
	assert.Equal(t, StatusError, results[0].Status)
	assert.Equal(t, Result{ID: "b", Status: StatusSkipped, Error: "session expired"}, results[1])
	assert.Equal(t, StatusSkipped, results[2].Status)
}

func TestProcess_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := Process(ctx, []string{"a"}, func(context.Context, string) (string, error) {
		t.Fatal("fn must not run after cancellation")
		return "", nil
	}, nil)

	require.Len(t, results, 1)
	assert.Equal(t, StatusSkipped, results[0].Status)
}

func TestFormatResults(t *testing.T) {
	out := FormatResults([]Result{
		NewSuccessResult("a", "ok"),
		NewErrorResult("b", errors.New("boom")),
		{ID: "c", Status: StatusSkipped},
	})

	var s Summary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Successful)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, "boom", s.Results[1].Error)
}
