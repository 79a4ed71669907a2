package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsum-ai-api/internal/domain/service"
	apperrors "vidsum-ai-api/pkg/errors"
)

type focusedFunc func(ctx context.Context, text, keyword string) (*service.FocusedSummary, error)

func (f focusedFunc) SummarizeFocused(ctx context.Context, text, keyword string) (*service.FocusedSummary, error) {
	return f(ctx, text, keyword)
}

func TestFocusedService_Summarize(t *testing.T) {
	s := NewFocusedService(focusedFunc(func(_ context.Context, text, keyword string) (*service.FocusedSummary, error) {
		return &service.FocusedSummary{
			Summary:         "About " + keyword,
			KeyPoints:       []string{"one", "One", ""},
			RelatedConcepts: []string{"mass"},
		}, nil
	}), testPolicy(), 300)

	out, err := s.Summarize(context.Background(), "Gravity attracts mass.", "gravity")
	require.NoError(t, err)
	assert.Equal(t, "gravity", out.Topic)
	assert.Equal(t, "About gravity", out.Summary)
	assert.Equal(t, []string{"one"}, out.KeyPoints)
	assert.Equal(t, []string{"mass"}, out.RelatedConcepts)
}

func TestFocusedService_ParsingErrorKeepsRawOutput(t *testing.T) {
	raw := "The model rambled: " + strings.Repeat("x", 20)
	s := NewFocusedService(focusedFunc(func(context.Context, string, string) (*service.FocusedSummary, error) {
		return nil, &service.OutputParseError{Raw: raw, Err: errors.New("invalid character 'T' looking for beginning of value")}
	}), CallPolicy{}, 10)

	out, err := s.Summarize(context.Background(), strings.Repeat("abc ", 10), "abc")
	require.NoError(t, err)
	assert.Equal(t, ParsingErrorTopic, out.Topic)
	assert.Equal(t, "The model ", out.Summary)
	assert.Empty(t, out.KeyPoints)
	assert.Empty(t, out.RelatedConcepts)
}

func TestFocusedService_CapabilityFailureIsReturned(t *testing.T) {
	s := NewFocusedService(focusedFunc(func(context.Context, string, string) (*service.FocusedSummary, error) {
		return nil, errors.New("dial tcp: connection refused")
	}), CallPolicy{}, 10)

	out, err := s.Summarize(context.Background(), "Gravity attracts mass.", "gravity")
	assert.Nil(t, out)
	assert.ErrorIs(t, err, apperrors.ErrCapabilityFailed)
}

func TestFocusedService_TimeoutIsReturned(t *testing.T) {
	s := NewFocusedService(focusedFunc(func(ctx context.Context, _, _ string) (*service.FocusedSummary, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), CallPolicy{Timeout: 10 * time.Millisecond}, 300)

	_, err := s.Summarize(context.Background(), "text", "kw")
	assert.ErrorIs(t, err, apperrors.ErrCapabilityTimeout)
}

func TestFocusedService_RequiresInput(t *testing.T) {
	s := NewFocusedService(focusedFunc(nil), testPolicy(), 300)

	_, err := s.Summarize(context.Background(), " ", "kw")
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)
	_, err = s.Summarize(context.Background(), "text", "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)
}
