package summary

import (
	"github.com/nijaru/yt-summary/errors"
)

type StructuredSummary struct {
	MainTopic        string   `json:"main_topic"`
	KeyPoints        []string `json:"key_points"`
	ImportantDetails []string `json:"important_details"`
	Takeaways        []string `json:"takeaways"`
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ResultEnvelope is the single outcome of a summarization run.
type ResultEnvelope struct {
	Status  Status             `json:"status"`
	Summary *StructuredSummary `json:"summary,omitempty"`
	VideoID string             `json:"video_id,omitempty"`
	Message string             `json:"message,omitempty"`

	Kind errors.Kind `json:"-"`
	// Code is the HTTP status for an error envelope.
	Code int `json:"-"`
}

func Success(s StructuredSummary, videoID string) ResultEnvelope {
	s.ensureLists()
	return ResultEnvelope{Status: StatusSuccess, Summary: &s, VideoID: videoID}
}

func Failure(kind errors.Kind, message string) ResultEnvelope {
	return ResultEnvelope{Status: StatusError, Message: message, Kind: kind, Code: errors.StatusFor(kind)}
}

func (r ResultEnvelope) IsSuccess() bool {
	return r.Status == StatusSuccess
}

func (s *StructuredSummary) ensureLists() {
	if s.KeyPoints == nil {
		s.KeyPoints = []string{}
	}
	if s.ImportantDetails == nil {
		s.ImportantDetails = []string{}
	}
	if s.Takeaways == nil {
		s.Takeaways = []string{}
	}
}
