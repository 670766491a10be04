package summary

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/nijaru/yt-summary/errors"
	"github.com/nijaru/yt-summary/llm"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	msgChainFailed      = "Chain execution failed"
	msgUnexpectedResult = "Unexpected result format"
)

// MapStage summarizes chunks independently.
type MapStage struct {
	llm         llm.Generator
	concurrency int
	log         *logrus.Entry
}

func NewMapStage(gen llm.Generator, concurrency int, log *logrus.Entry) *MapStage {
	if concurrency < 1 {
		concurrency = 1
	}
	return &MapStage{llm: gen, concurrency: concurrency, log: log}
}

func (m *MapStage) SummarizeChunk(ctx context.Context, chunk string) (string, error) {
	return m.llm.Generate(ctx, mapPrompt(chunk))
}

// SummarizeAll returns one summary per chunk, in chunk order. The first
// failure stops the remaining calls and names the chunk that failed.
func (m *MapStage) SummarizeAll(ctx context.Context, chunks []string) ([]string, error) {
	const op = "MapStage.SummarizeAll"

	summaries := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for i, chunk := range chunks {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errors.Errorf("panic: %v", r)
				}
				if err != nil {
					err = apperrors.New(apperrors.KindModelInvocation, op,
						errors.Wrapf(err, "map chunk %d/%d", i+1, len(chunks)), msgChainFailed)
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}

			start := time.Now()
			out, err := m.SummarizeChunk(gctx, chunk)
			if err != nil {
				return err
			}
			summaries[i] = out

			m.log.WithFields(logrus.Fields{
				"chunk":    i + 1,
				"total":    len(chunks),
				"duration": time.Since(start),
			}).Debug("Chunk summarized")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// ReduceStage folds chunk summaries into one JSON-shaped reply.
type ReduceStage struct {
	llm llm.Generator
}

func NewReduceStage(gen llm.Generator) *ReduceStage {
	return &ReduceStage{llm: gen}
}

func (r *ReduceStage) Combine(ctx context.Context, summaries []string) (string, error) {
	const op = "ReduceStage.Combine"

	raw, err := r.llm.Generate(ctx, combinePrompt(summaries))
	if err != nil {
		return "", apperrors.New(apperrors.KindModelInvocation, op, errors.Wrap(err, "reduce"), msgChainFailed)
	}
	if strings.TrimSpace(raw) == "" {
		return "", apperrors.New(apperrors.KindUnexpectedResultShape, op, nil, msgUnexpectedResult)
	}
	return raw, nil
}
