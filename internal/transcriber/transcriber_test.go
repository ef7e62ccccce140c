package transcriber

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbright/v2md/internal/config"
	"github.com/rbright/v2md/internal/model"
)

// fakeInferencer returns a fixed or per-call scripted response and records
// the jobs it was asked to process.
type fakeInferencer struct {
	mu       sync.Mutex
	finalFn  func(job *model.Job) model.Result
	provFn   func(job *model.Job) model.Result
	finalsN  int
	provsN   int
	finalErr error
}

func (f *fakeInferencer) Submit(_ context.Context, job *model.Job) (model.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if job.Kind == model.Final {
		f.finalsN++
		if f.finalFn != nil {
			res := f.finalFn(job)
			return res, res.Err
		}
		return model.Result{Text: "final text"}, nil
	}

	f.provsN++
	if f.provFn != nil {
		res := f.provFn(job)
		return res, res.Err
	}
	return model.Result{Text: "partial"}, nil
}

func alwaysSpeech() VADProvider { return fixedVAD{speech: true} }
func neverSpeech() VADProvider  { return fixedVAD{speech: false} }

type fixedVAD struct{ speech bool }

func (f fixedVAD) IsSpeech([]float32) bool { return f.speech }

func testCfg() config.WhisperConfig {
	return config.WhisperConfig{
		VAD: config.VADParameters{
			Threshold:           0.5,
			SilenceDurationMS:   50,
			MinSpeechDurationMS: 10,
			PreRollMS:           30,
		},
	}
}

func chunk(n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = 0.9
	}
	return s
}

func TestProcessChunk_IdleToSpeechEntersSegment(t *testing.T) {
	tr := New(testCfg(), &fakeInferencer{}, alwaysSpeech(), nil, nil)
	tr.ProcessChunk(context.Background(), chunk(200), "en")

	tr.mu.Lock()
	defer tr.mu.Unlock()
	assert.Equal(t, stateSpeech, tr.state)
	assert.NotEmpty(t, tr.segment)
}

func TestProcessChunk_SpeechThenSilenceCommitsAfterThreshold(t *testing.T) {
	var events []Event
	infer := &fakeInferencer{}
	tr := New(testCfg(), infer, fixedVAD{speech: true}, nil, func(e Event) {
		events = append(events, e)
	})

	// Long enough chunk to clear MinSpeechDurationMS immediately.
	tr.ProcessChunk(context.Background(), chunk(4000), "en")

	tr.vad = fixedVAD{speech: false}
	tr.ProcessChunk(context.Background(), chunk(200), "en")
	require.Equal(t, stateTrailing, tr.state)

	time.Sleep(80 * time.Millisecond)
	tr.ProcessChunk(context.Background(), chunk(200), "en")

	tr.mu.Lock()
	state := tr.state
	finals := append([]string(nil), tr.finals...)
	tr.mu.Unlock()

	assert.Equal(t, stateIdle, state)
	assert.Equal(t, 1, infer.finalsN)
	require.Len(t, finals, 1)
	assert.Equal(t, "final text", finals[0])

	var sawFinalEvent bool
	for _, e := range events {
		if e.Final {
			sawFinalEvent = true
		}
	}
	assert.True(t, sawFinalEvent)
}

func TestCommit_EmptyFinalTextClearsContextWindow(t *testing.T) {
	infer := &fakeInferencer{finalFn: func(job *model.Job) model.Result {
		return model.Result{Text: ""}
	}}
	tr := New(testCfg(), infer, fixedVAD{speech: true}, nil, nil)
	tr.contextWindow = "previous finalized tail"
	tr.segment = chunk(4000)
	tr.state = stateSpeech

	tr.commit(context.Background(), "en", time.Now())

	tr.mu.Lock()
	defer tr.mu.Unlock()
	assert.Equal(t, "", tr.contextWindow)
	assert.Empty(t, tr.finals)
}

func TestCommit_NonEmptyFinalAdvancesContextWindowCappedAt200(t *testing.T) {
	longText := ""
	for i := 0; i < 50; i++ {
		longText += "0123456789"
	}
	infer := &fakeInferencer{finalFn: func(job *model.Job) model.Result {
		return model.Result{Text: longText}
	}}
	tr := New(testCfg(), infer, fixedVAD{speech: true}, nil, nil)
	tr.segment = chunk(4000)
	tr.state = stateSpeech

	tr.commit(context.Background(), "en", time.Now())

	tr.mu.Lock()
	defer tr.mu.Unlock()
	assert.LessOrEqual(t, len([]rune(tr.contextWindow)), contextWindowCap)
	assert.Equal(t, []string{longText}, tr.finals)
}

func TestStop_DiscardsShortActiveSegment(t *testing.T) {
	infer := &fakeInferencer{}
	tr := New(testCfg(), infer, fixedVAD{speech: true}, nil, nil)
	tr.segment = chunk(10) // far below MinSpeechDurationMS
	tr.state = stateSpeech

	out, err := tr.Stop(context.Background(), "en")
	require.NoError(t, err)
	assert.Equal(t, "", out)
	assert.Equal(t, 0, infer.finalsN)
}

func TestStop_CommitsLongActiveSegmentAndReturnsAssembledTranscript(t *testing.T) {
	infer := &fakeInferencer{finalFn: func(job *model.Job) model.Result {
		return model.Result{Text: "hello world"}
	}}
	tr := New(testCfg(), infer, fixedVAD{speech: true}, nil, nil)
	tr.segment = chunk(4000)
	tr.state = stateSpeech

	out, err := tr.Stop(context.Background(), "en")
	require.NoError(t, err)
	assert.Contains(t, out, "hello world")
	assert.Equal(t, 1, infer.finalsN)
}

func TestTrimTail_KeepsRightmostRunes(t *testing.T) {
	assert.Equal(t, "world", trimTail("hello world", 5))
	assert.Equal(t, "hi", trimTail("hi", 5))
}
