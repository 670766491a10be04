package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/nijaru/yt-summary/errors"
	"github.com/nijaru/yt-summary/llm"
	"github.com/nijaru/yt-summary/logger"
	"github.com/nijaru/yt-summary/transcription"
	"github.com/nijaru/yt-summary/validation"
	"github.com/sirupsen/logrus"
)

const (
	msgInvalidURL    = "Invalid YouTube URL"
	msgTranscriptErr = "Error getting transcript"
	msgPanic         = "Summarization failed"

	ledgerTimeout = 5 * time.Second
)

// RunRecorder keeps an audit trail of runs. Failures are logged and ignored.
type RunRecorder interface {
	StartRun(ctx context.Context, url string) (string, error)
	FinishRun(ctx context.Context, id, videoID, status, errMsg string, chunkCount int) error
}

type Options struct {
	ChunkSize      int
	ChunkOverlap   int
	MapConcurrency int
	Mode           ExtractorMode
	Timeout        time.Duration
	Recorder       RunRecorder
	Logger         *logrus.Logger
}

// Summarizer runs URL parsing, transcript fetch, chunking, map, reduce and
// extraction for one video.
type Summarizer struct {
	source    transcription.Source
	splitter  *Splitter
	mapper    *MapStage
	reducer   *ReduceStage
	extractor Extractor
	recorder  RunRecorder
	timeout   time.Duration
	log       *logrus.Logger
}

func NewSummarizer(source transcription.Source, gen llm.Generator, opts Options) (*Summarizer, error) {
	splitter, err := NewSplitter(opts.ChunkSize, opts.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Summarizer{
		source:    source,
		splitter:  splitter,
		mapper:    NewMapStage(gen, opts.MapConcurrency, logrus.NewEntry(log)),
		reducer:   NewReduceStage(gen),
		extractor: Extractor{Mode: opts.Mode},
		recorder:  opts.Recorder,
		timeout:   opts.Timeout,
		log:       log,
	}, nil
}

// Run never returns an error; every failure becomes an error envelope.
func (s *Summarizer) Run(ctx context.Context, url string) (env ResultEnvelope) {
	start := time.Now()
	entry := s.log.WithField("url", url)
	if id := logger.RequestID(ctx); id != "" {
		entry = entry.WithField("request_id", id)
	}

	runID := s.startRun(ctx, url, entry)
	var (
		videoID    string
		chunkCount int
		step       = "parse"
	)

	defer func() {
		if r := recover(); r != nil {
			entry.WithFields(logrus.Fields{"panic": r, "step": step}).Error("Summarization panicked")
			env = Failure(apperrors.KindUnknown, fmt.Sprintf("%s in %s stage: %v", msgPanic, step, r))
		}
		s.finishRun(ctx, runID, videoID, env, chunkCount, entry)

		fields := logrus.Fields{"status": env.Status, "duration": time.Since(start)}
		if env.IsSuccess() {
			entry.WithFields(fields).Info("Summarization finished")
		} else {
			entry.WithFields(fields).WithField("error", env.Message).Warn("Summarization failed")
		}
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	id, ok := validation.ExtractVideoID(url)
	if !ok {
		return Failure(apperrors.KindInvalidURL, msgInvalidURL)
	}
	videoID = id
	entry = entry.WithField("video_id", videoID)

	step = "fetch"
	stage := time.Now()
	transcript, err := s.source.Fetch(ctx, videoID)
	if err == nil && strings.TrimSpace(transcript) == "" {
		err = transcription.ErrEmptyTranscript
	}
	if err != nil {
		return fail(apperrors.New(apperrors.KindTranscriptUnavailable, "Summarizer.Run", err, msgTranscriptErr))
	}
	entry.WithFields(logrus.Fields{"chars": len(transcript), "duration": time.Since(stage)}).Info("Transcript ready")

	step = "split"
	chunks := s.splitter.Split(transcript)
	chunkCount = len(chunks)
	entry = entry.WithField("chunks", chunkCount)

	step = "map"
	stage = time.Now()
	partials, err := s.mapper.SummarizeAll(ctx, chunks)
	if err != nil {
		return fail(err)
	}
	entry.WithField("duration", time.Since(stage)).Info("Map stage finished")

	step = "reduce"
	stage = time.Now()
	raw, err := s.reducer.Combine(ctx, partials)
	if err != nil {
		return fail(err)
	}
	entry.WithField("duration", time.Since(stage)).Info("Reduce stage finished")

	step = "extract"
	structured, err := s.extractor.Extract(raw)
	if err != nil {
		entry.WithField("raw", raw).Debug("Unparseable reduce output")
		return fail(err)
	}

	return Success(structured, videoID)
}

func fail(err error) ResultEnvelope {
	return Failure(apperrors.KindOf(err), err.Error())
}

func (s *Summarizer) startRun(ctx context.Context, url string, entry *logrus.Entry) string {
	if s.recorder == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
	defer cancel()

	id, err := s.recorder.StartRun(ctx, url)
	if err != nil {
		entry.WithError(err).Warn("Failed to record run start")
		return ""
	}
	return id
}

func (s *Summarizer) finishRun(ctx context.Context, runID, videoID string, env ResultEnvelope, chunkCount int, entry *logrus.Entry) {
	if s.recorder == nil || runID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
	defer cancel()

	if err := s.recorder.FinishRun(ctx, runID, videoID, string(env.Status), env.Message, chunkCount); err != nil {
		entry.WithError(err).Warn("Failed to record run outcome")
	}
}
