package pipeline

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/matthew-graves/the-zyndicator/internal/roi"
	"github.com/matthew-graves/the-zyndicator/internal/stabilizer"
)

// Outcome classifies what happened to one frame.
type Outcome string

const (
	OutcomeNoQR        Outcome = "no_qr"
	OutcomeLocateError Outcome = "locate_error"
	OutcomeDegenerate  Outcome = "degenerate"
	OutcomeEmptyPatch  Outcome = "empty_patch"
	OutcomeOCRError    Outcome = "ocr_error"
	OutcomeRecognized  Outcome = "recognized"
)

// FrameResult describes the processing of a single frame.
type FrameResult struct {
	Index     int               `json:"index"`
	Name      string            `json:"name,omitempty"`
	Outcome   Outcome           `json:"outcome"`
	Quad      *roi.Quad         `json:"quad,omitempty"`
	ROI       *roi.RotatedRect  `json:"roi,omitempty"`
	Text      string            `json:"text,omitempty"`
	Update    stabilizer.Update `json:"-"`
	Stable    string            `json:"stabilized,omitempty"`
	Candidate string            `json:"candidate,omitempty"`
	Forwarded []ForwardResult   `json:"forwarded,omitempty"`
	Overlay   string            `json:"overlay,omitempty"`
	Duration  time.Duration     `json:"duration_ns"`
}

// ForwardResult is the server acknowledgement of one forwarded code.
type ForwardResult struct {
	Code    string `json:"code"`
	Status  string `json:"status"`
	Payload string `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RunSummary aggregates a Run.
type RunSummary struct {
	SessionID  string          `json:"session_id"`
	Frames     int             `json:"frames"`
	Outcomes   map[Outcome]int `json:"outcomes"`
	Stabilized string          `json:"stabilized,omitempty"`
	Forwarded  []string        `json:"forwarded,omitempty"`
	Duration   time.Duration   `json:"duration_ns"`
}

func (s *RunSummary) add(res *FrameResult) {
	s.Frames++
	if s.Outcomes == nil {
		s.Outcomes = make(map[Outcome]int)
	}
	s.Outcomes[res.Outcome]++
	if res.Stable != "" {
		s.Stabilized = res.Stable
	}
	for _, f := range res.Forwarded {
		if f.Error == "" {
			s.Forwarded = append(s.Forwarded, f.Code)
		}
	}
}

// ToJSONFrame serializes a FrameResult as a single JSON line.
func ToJSONFrame(res *FrameResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.Marshal(res)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToJSONSummary serializes a RunSummary to pretty JSON.
func ToJSONSummary(s RunSummary) (string, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
