package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsum-ai-api/internal/domain/entity"
	"vidsum-ai-api/internal/domain/service"
	apperrors "vidsum-ai-api/pkg/errors"
)

// physicsExtractor 根据文本内容返回确定性的抽取结果
func physicsExtractor(_ context.Context, text string) (*service.Extraction, error) {
	lower := strings.ToLower(text)
	out := &service.Extraction{}
	if strings.Contains(lower, "newton") {
		newton := entity.Entity{Label: "Newton", Kind: entity.EntityKindPerson}
		gravity := entity.Entity{Label: "Gravity", Kind: entity.EntityKindConcept}
		out.KeyPoints = []string{"Newton described gravity", "newton described gravity"}
		out.Entities = []entity.Entity{newton, gravity}
		out.Relations = []entity.Relation{{Source: newton, Target: gravity, Label: "discovered"}}
	}
	if strings.Contains(lower, "intro") {
		out.KeyPoints = append(out.KeyPoints, "Course overview")
	}
	return out, nil
}

func physicsTranscript() entity.Transcript {
	return entity.NewTranscript([]entity.Span{
		{Start: 0, End: 10, Text: "Welcome to the intro of this course."},
		{Start: 10, End: 20, Text: "The intro explains the course plan."},
		{Start: 20, End: 40, Text: "Newton discovered gravity."},
	})
}

func newTestPipeline(store ArtifactWriter, files service.FileStore) *Pipeline {
	return New(testConfig(), summarizerFunc(firstSentence), extractorFunc(physicsExtractor), files, store)
}

func TestProcess_EndToEnd(t *testing.T) {
	store := &memoryWriter{}
	files := newMemoryFiles()
	p := newTestPipeline(store, files)

	var (
		mu       sync.Mutex
		progress []int
	)
	art, err := p.Process(context.Background(), ProcessInput{
		VideoID:    "vid-1",
		SourceName: "lecture.mp4",
		Transcript: physicsTranscript(),
		Progress: func(v int) {
			mu.Lock()
			defer mu.Unlock()
			progress = append(progress, v)
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "vid-1", art.VideoID)
	assert.Equal(t, "lecture.mp4", art.SourceName)
	require.Len(t, art.Segments, 2)
	assert.Equal(t, "intro course welcome", art.OverallTopic)
	assert.Equal(t, "newton discovered gravity", art.Segments[1].Segment.Topic)
	assert.Equal(t, []string{"Course overview"}, art.Segments[0].KeyPoints)
	assert.Equal(t, []string{"Newton described gravity"}, art.Segments[1].KeyPoints)
	assert.Equal(t, "Welcome to the intro of this course.", art.Segments[0].Summary)
	assert.NotEmpty(t, art.OverallSummary)

	assert.Contains(t, art.MindmapCode, `root(("intro course welcome"))`)
	assert.Contains(t, art.MindmapCode, `e1["Newton"]`)
	assert.Contains(t, art.MindmapCode, `discovered → Gravity`)
	assert.Equal(t, "outputs/vid-1_mindmap.mmd", art.MindmapFile)
	assert.Equal(t, art.MindmapCode, files.files[art.MindmapFile])
	assert.Empty(t, art.MindmapError)
	assert.False(t, art.CreatedAt.IsZero())

	assert.Equal(t, 1, store.count())
	require.NotEmpty(t, progress)
	assert.Equal(t, 100, progress[len(progress)-1])
}

func TestProcess_DeterministicUnderFixedStubs(t *testing.T) {
	ca := true
	first, err := newTestPipeline(&memoryWriter{}, nil).Process(context.Background(), ProcessInput{Transcript: physicsTranscript(), ContentAddressed: &ca})
	require.NoError(t, err)
	second, err := newTestPipeline(&memoryWriter{}, nil).Process(context.Background(), ProcessInput{Transcript: physicsTranscript(), ContentAddressed: &ca})
	require.NoError(t, err)

	assert.Equal(t, first.OverallTopic, second.OverallTopic)
	assert.Equal(t, len(first.Segments), len(second.Segments))
	assert.Equal(t, first.VideoID, second.VideoID)
	assert.Equal(t, first.ContentHash, second.ContentHash)
	assert.Equal(t, first.MindmapCode, second.MindmapCode)
	assert.True(t, first.ContentAddressed)
}

func TestProcess_GeneratesVideoID(t *testing.T) {
	a, err := newTestPipeline(&memoryWriter{}, nil).Process(context.Background(), ProcessInput{Transcript: physicsTranscript()})
	require.NoError(t, err)
	b, err := newTestPipeline(&memoryWriter{}, nil).Process(context.Background(), ProcessInput{Transcript: physicsTranscript()})
	require.NoError(t, err)
	assert.NotEmpty(t, a.VideoID)
	assert.NotEqual(t, a.VideoID, b.VideoID)
}

func TestProcess_EmptyTranscript(t *testing.T) {
	store := &memoryWriter{}
	_, err := newTestPipeline(store, nil).Process(context.Background(), ProcessInput{Transcript: entity.NewTranscript(nil)})
	assert.ErrorIs(t, err, apperrors.ErrEmptyInput)
	assert.Zero(t, store.count())
}

func TestProcess_MindmapFailureKeepsSummary(t *testing.T) {
	store := &memoryWriter{}
	files := newMemoryFiles()
	bad := extractorFunc(func(context.Context, string) (*service.Extraction, error) {
		return &service.Extraction{
			KeyPoints: []string{"still here"},
			Entities:  []entity.Entity{{Label: "\x00", Kind: entity.EntityKindTerm}},
		}, nil
	})
	p := New(testConfig(), summarizerFunc(firstSentence), bad, files, store)

	art, err := p.Process(context.Background(), ProcessInput{Transcript: physicsTranscript()})
	require.NoError(t, err)
	assert.NotEmpty(t, art.MindmapError)
	assert.Empty(t, art.MindmapCode)
	assert.Empty(t, art.MindmapFile)
	assert.Nil(t, art.Mindmap)
	assert.NotEmpty(t, art.OverallSummary)
	assert.Equal(t, []string{"still here"}, art.Segments[0].KeyPoints)
	assert.Empty(t, files.files)
	assert.Equal(t, 1, store.count())
}

func TestProcess_CancellationStopsDispatchAndSkipsStore(t *testing.T) {
	started := make(chan struct{}, 16)
	release := make(chan struct{})
	var calls int
	blocking := summarizerFunc(func(ctx context.Context, text string) (string, error) {
		calls++
		started <- struct{}{}
		<-release
		return firstSentence(ctx, text)
	})

	cfg := testConfig()
	cfg.MaxConcurrentCalls = 1
	cfg.Segmenter.MaxSegmentWords = 1
	store := &memoryWriter{}
	p := New(cfg, blocking, extractorFunc(noExtraction), nil, store)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := p.Process(ctx, ProcessInput{Transcript: entity.NewTranscript(spans("alpha", "beta", "gamma", "delta"))})
		errCh <- err
	}()

	<-started
	cancel()
	close(release)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, apperrors.ErrJobCancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("Process did not return after cancellation")
	}
	assert.Zero(t, store.count())
	assert.Equal(t, 1, calls, "no new segment work after cancellation")
}

func TestProcess_BoundedModelConcurrency(t *testing.T) {
	c := &countingSummarizer{delay: 5 * time.Millisecond}
	cfg := testConfig()
	cfg.MaxConcurrentCalls = 2
	cfg.Segmenter.MaxSegmentWords = 1

	p := New(cfg, c, extractorFunc(noExtraction), nil, &memoryWriter{})
	art, err := p.Process(context.Background(), ProcessInput{
		Transcript: entity.NewTranscript(spans("one", "two", "three", "four", "five", "six")),
	})
	require.NoError(t, err)
	assert.Len(t, art.Segments, 6)
	assert.LessOrEqual(t, c.peak.Load(), int32(2))
	assert.Equal(t, int32(7), c.calls.Load(), "six segment summaries plus one overall pass")
}

func TestProcess_StoreErrorIsReturned(t *testing.T) {
	store := &memoryWriter{err: apperrors.ErrArtifactExists}
	_, err := newTestPipeline(store, nil).Process(context.Background(), ProcessInput{VideoID: "dup", Transcript: physicsTranscript()})
	assert.ErrorIs(t, err, apperrors.ErrArtifactExists)
}

func TestPipeline_ResolveVideoID(t *testing.T) {
	p := newTestPipeline(&memoryWriter{}, nil)
	tr := entity.NewTranscript([]entity.Span{{Start: 0, End: 1, Text: "hello"}})

	id, ca := p.ResolveVideoID(ProcessInput{VideoID: "v1", Transcript: tr})
	assert.Equal(t, "v1", id)
	assert.False(t, ca)

	id, ca = p.ResolveVideoID(ProcessInput{Transcript: tr})
	assert.Empty(t, id)
	assert.False(t, ca)

	on := true
	id, ca = p.ResolveVideoID(ProcessInput{VideoID: "v1", Transcript: tr, ContentAddressed: &on})
	assert.Equal(t, tr.ContentHash()[:32], id)
	assert.True(t, ca)
}
