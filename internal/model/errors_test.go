package model_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"go-image-pipeline/internal/model"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient", model.NewError(model.CodeTransientFetch, 1, errors.New("503")), true},
		{"wrapped transient", fmt.Errorf("attempt 1: %w", model.NewError(model.CodeTransientFetch, 1, errors.New("503"))), true},
		{"uncoded", errors.New("connection reset"), true},
		{"permanent", model.NewError(model.CodePermanentFetch, 1, errors.New("404")), false},
		{"cancelled", model.NewError(model.CodeCancelled, 1, context.Canceled), false},
		{"storage", model.NewError(model.CodeStorage, 1, errors.New("disk full")), false},
		{"invalid config", model.NewError(model.CodeInvalidConfig, 0, errors.New("bad mode")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, model.IsRetryable(tt.err))
		})
	}
}

func TestPipelineError(t *testing.T) {
	pe := model.NewError(model.CodePermanentFetch, 37, context.DeadlineExceeded)
	pe.Attempts = 2

	require.Equal(t, "PERMANENT_FETCH_ERROR: item 37 after 2 attempt(s): context deadline exceeded", pe.Error())
	require.ErrorIs(t, pe, context.DeadlineExceeded)
	require.Equal(t, model.CodePermanentFetch, model.CodeOf(fmt.Errorf("fetch: %w", pe)))
	require.Equal(t, model.CodeInternal, model.CodeOf(errors.New("plain")))
}
