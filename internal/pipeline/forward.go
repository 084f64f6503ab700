package pipeline

import (
	"context"

	"github.com/matthew-graves/the-zyndicator/internal/client"
	"github.com/matthew-graves/the-zyndicator/internal/stabilizer"
)

// Forwarder delivers a finished code and returns the acknowledgement.
// *client.Client satisfies it.
type Forwarder interface {
	Forward(ctx context.Context, code string) (client.Reply, error)
}

// stream identifies where a forwarded code came from.
type stream uint8

const (
	streamStabilized stream = 1 << iota
	streamCandidate
)

// outgoing is one code to forward and the streams it stands for.
type outgoing struct {
	code    string
	streams stream
}

// codesToForward picks the codes an update contributes under mode. A
// candidate equal to the stabilized code is sent once for both streams.
func codesToForward(mode ForwardMode, u stabilizer.Update) []outgoing {
	var out []outgoing
	if u.HasStabilized && (mode == ForwardStabilized || mode == ForwardBoth) {
		out = append(out, outgoing{code: u.Stabilized, streams: streamStabilized})
	}
	if u.HasCandidate && (mode == ForwardCandidate || mode == ForwardBoth) {
		if len(out) > 0 && out[0].code == u.Candidate {
			out[0].streams |= streamCandidate
		} else {
			out = append(out, outgoing{code: u.Candidate, streams: streamCandidate})
		}
	}
	return out
}

// lastSent remembers the last accepted code of each stream.
type lastSent struct {
	stabilized string
	candidate  string
}

// pending reports whether o still has a stream that has not accepted its code.
func (l *lastSent) pending(o outgoing) bool {
	if o.streams&streamStabilized != 0 && l.stabilized != o.code {
		return true
	}
	return o.streams&streamCandidate != 0 && l.candidate != o.code
}

func (l *lastSent) record(o outgoing) {
	if o.streams&streamStabilized != 0 {
		l.stabilized = o.code
	}
	if o.streams&streamCandidate != 0 {
		l.candidate = o.code
	}
}

// forward sends codes that differ from the last one the server accepted on
// the same stream. Transport failures and rejections leave that memory
// unchanged, so the code is sent again on the next frame. It runs with the
// tick lock held.
func (s *Session) forward(ctx context.Context, res *FrameResult) {
	if s.forwarder == nil {
		return
	}
	for _, o := range codesToForward(s.cfg.Forward, res.Update) {
		if !s.last.pending(o) {
			continue
		}
		reply, err := s.forwarder.Forward(ctx, o.code)
		if err != nil {
			s.log.Warn("Forward failed", "code", o.code, "error", err)
			forwardedTotal.WithLabelValues("error").Inc()
			res.Forwarded = append(res.Forwarded, ForwardResult{Code: o.code, Status: "error", Error: err.Error()})
			continue
		}
		forwardedTotal.WithLabelValues(reply.Status).Inc()
		if !reply.Accepted() {
			s.log.Warn("Server rejected code", "code", o.code, "status", reply.Status, "payload", reply.Payload)
			res.Forwarded = append(res.Forwarded, ForwardResult{
				Code:    o.code,
				Status:  reply.Status,
				Payload: reply.Payload,
				Error:   "rejected: " + reply.Payload,
			})
			continue
		}
		s.last.record(o)
		s.log.Info("Server status", "code", o.code, "status", reply.Status, "payload", reply.Payload)
		res.Forwarded = append(res.Forwarded, ForwardResult{Code: o.code, Status: reply.Status, Payload: reply.Payload})
	}
}
