package summary

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/nijaru/yt-summary/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	mu      sync.Mutex
	prompts []string
	reply   func(prompt string) (string, error)
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.reply(prompt)
}

func (f *fakeLLM) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func chunkOf(prompt string) string {
	body := strings.TrimPrefix(prompt, "Extract the key information from this transcript section:\n")
	return strings.TrimSuffix(body, "\n\nReturn a brief summary focusing on the main points discussed.")
}

func TestSummarizeChunkUsesMapPrompt(t *testing.T) {
	llm := &fakeLLM{reply: func(string) (string, error) { return "synopsis", nil }}

	out, err := NewMapStage(llm, 1, quietLog()).SummarizeChunk(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, "synopsis", out)
	assert.Equal(t, []string{
		"Extract the key information from this transcript section:\nhello world\n\nReturn a brief summary focusing on the main points discussed.",
	}, llm.calls())
}

func TestSummarizeAllPreservesOrderWhenParallel(t *testing.T) {
	var inflight, peak int32
	llm := &fakeLLM{reply: func(p string) (string, error) {
		n := atomic.AddInt32(&inflight, 1)
		defer atomic.AddInt32(&inflight, -1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		chunk := chunkOf(p)
		if chunk == "c0" {
			time.Sleep(20 * time.Millisecond)
		}
		return "sum-" + chunk, nil
	}}

	chunks := []string{"c0", "c1", "c2", "c3", "c4", "c5"}
	got, err := NewMapStage(llm, 3, quietLog()).SummarizeAll(context.Background(), chunks)
	require.NoError(t, err)

	assert.Equal(t, []string{"sum-c0", "sum-c1", "sum-c2", "sum-c3", "sum-c4", "sum-c5"}, got)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestSummarizeAllAttributesFailingChunk(t *testing.T) {
	llm := &fakeLLM{reply: func(p string) (string, error) {
		if chunkOf(p) == "c1" {
			return "", fmt.Errorf("connection refused")
		}
		return "ok", nil
	}}

	_, err := NewMapStage(llm, 1, quietLog()).SummarizeAll(context.Background(), []string{"c0", "c1", "c2"})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindModelInvocation, apperrors.KindOf(err))
	assert.Equal(t, "Chain execution failed: map chunk 2/3: connection refused", err.Error())

	// sequential: the chunk after the failure is never sent
	assert.Len(t, llm.calls(), 2)
}

func TestSummarizeAllRecoversPanics(t *testing.T) {
	llm := &fakeLLM{reply: func(string) (string, error) { panic("boom") }}

	_, err := NewMapStage(llm, 2, quietLog()).SummarizeAll(context.Background(), []string{"c0"})
	require.Error(t, err)
	assert.Equal(t, "Chain execution failed: map chunk 1/1: panic: boom", err.Error())
}

func TestCombine(t *testing.T) {
	llm := &fakeLLM{reply: func(string) (string, error) { return `{"main_topic":"x"}`, nil }}

	raw, err := NewReduceStage(llm).Combine(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, `{"main_topic":"x"}`, raw)

	prompt := llm.calls()[0]
	assert.Contains(t, prompt, "Summaries to combine:\nfirst\n\nsecond\n\nRemember to maintain valid JSON format")
	assert.Contains(t, prompt, `"important_details": [`)
}

func TestCombineFailures(t *testing.T) {
	empty := &fakeLLM{reply: func(string) (string, error) { return "  \n", nil }}
	_, err := NewReduceStage(empty).Combine(context.Background(), []string{"s"})
	assert.Equal(t, apperrors.KindUnexpectedResultShape, apperrors.KindOf(err))
	assert.Equal(t, "Unexpected result format", err.Error())

	broken := &fakeLLM{reply: func(string) (string, error) { return "", fmt.Errorf("timeout") }}
	_, err = NewReduceStage(broken).Combine(context.Background(), []string{"s"})
	assert.Equal(t, apperrors.KindModelInvocation, apperrors.KindOf(err))
	assert.Equal(t, "Chain execution failed: reduce: timeout", err.Error())
}
