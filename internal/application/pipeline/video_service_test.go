package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsum-ai-api/internal/domain/entity"
	apperrors "vidsum-ai-api/pkg/errors"
)

func newTestVideoService(store *memoryWriter, files *memoryFiles, tr transcriberFunc) *VideoService {
	p := newTestPipeline(store, files)
	audio := audioFunc(func(_ context.Context, videoPath string) (string, error) {
		return videoPath + ".wav", nil
	})
	return NewVideoService(p, files, audio, tr, UploadPolicy{
		MaxBytes:          1024,
		AllowedExtensions: []string{".mp4", ".mov"},
	})
}

func TestValidateUpload(t *testing.T) {
	s := newTestVideoService(&memoryWriter{}, newMemoryFiles(), nil)

	tests := []struct {
		name   string
		upload Upload
	}{
		{"missing file", Upload{}},
		{"empty file", Upload{Filename: "a.mp4", Size: 0, Content: strings.NewReader("")}},
		{"too large", Upload{Filename: "a.mp4", Size: 4096, Content: strings.NewReader("x")}},
		{"wrong extension", Upload{Filename: "notes.txt", Size: 3, Content: strings.NewReader("abc")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, s.ValidateUpload(tt.upload), apperrors.ErrMalformedUpload)
		})
	}

	assert.NoError(t, s.ValidateUpload(Upload{Filename: "Talk.MP4", Size: 3, Content: strings.NewReader("abc")}))
}

func TestSummarizeVideo(t *testing.T) {
	store := &memoryWriter{}
	files := newMemoryFiles()
	var gotAudio string
	s := newTestVideoService(store, files, func(_ context.Context, audioPath string) ([]entity.Span, error) {
		gotAudio = audioPath
		return physicsTranscript().Spans, nil
	})

	art, err := s.SummarizeVideo(context.Background(), Upload{Filename: "talk.mp4", Size: 5, Content: strings.NewReader("video")})
	require.NoError(t, err)

	assert.Equal(t, "uploads/talk.mp4.wav", gotAudio)
	assert.Equal(t, "talk.mp4", art.SourceName)
	assert.Len(t, art.Segments, 2)
	assert.Equal(t, 1, store.count())
	assert.ElementsMatch(t, []string{"uploads/talk.mp4.wav", "uploads/talk.mp4"}, files.removed)
}

func TestSummarizeVideo_TranscriptionFailureIsFatal(t *testing.T) {
	store := &memoryWriter{}
	files := newMemoryFiles()
	s := newTestVideoService(store, files, func(context.Context, string) ([]entity.Span, error) {
		return nil, errors.New("whisper unavailable")
	})

	_, err := s.SummarizeVideo(context.Background(), Upload{Filename: "talk.mp4", Size: 5, Content: strings.NewReader("video")})
	assert.ErrorIs(t, err, apperrors.ErrCapabilityFailed)
	assert.Zero(t, store.count())
	assert.Contains(t, files.removed, "uploads/talk.mp4")
}

func TestSummarizeVideo_SilentAudioIsEmptyInput(t *testing.T) {
	store := &memoryWriter{}
	s := newTestVideoService(store, newMemoryFiles(), func(context.Context, string) ([]entity.Span, error) {
		return nil, nil
	})

	_, err := s.SummarizeVideo(context.Background(), Upload{Filename: "talk.mov", Size: 5, Content: strings.NewReader("video")})
	assert.ErrorIs(t, err, apperrors.ErrEmptyInput)
	assert.Zero(t, store.count())
}
