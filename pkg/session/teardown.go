package session

import (
	"context"

	"github.com/hublink/hublink-go/pkg/link"
	"github.com/hublink/hublink-go/pkg/log"
	"github.com/hublink/hublink-go/pkg/transport"
)

// startTeardown detaches every cached link and disconnects the transport.
//
// Steps run strictly in order on one goroutine: the device-bound sender,
// the feedback receiver, the file notification receiver, then the
// connection. Every step runs even if an earlier one fails. With a trigger
// error the links are force-detached locally; without one they are
// detached gracefully.
func (s *Session) startTeardown() {
	trigger := s.trigger
	epoch := s.epoch

	s.cache.Reset(transport.NotConnected("session is disconnecting"))
	var handles []*link.Handle
	for _, ep := range s.cache.Endpoints() {
		if h, ok := s.cache.Take(ep); ok {
			handles = append(handles, h)
		}
	}
	clear(s.receivers)

	tr := s.cfg.Transport
	ctx := s.ctx
	s.logger.Debug("tearing down", "links", len(handles), "forced", trigger != nil)

	go func() {
		err := s.teardown(ctx, tr, handles, trigger)
		s.post(&event{kind: evTornDown, epoch: epoch, err: err})
	}()
}

// teardown runs the steps and aggregates their errors: the trigger wins,
// otherwise the first step error is returned.
func (s *Session) teardown(ctx context.Context, tr transport.Transport, handles []*link.Handle, trigger error) error {
	var first error
	record := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	for _, h := range handles {
		if trigger != nil {
			h.Link.ForceDetach(trigger)
			s.captureLink(h.Endpoint, log.LinkForceDetach, nil)
			continue
		}
		err := h.Link.Detach(ctx)
		s.captureLink(h.Endpoint, log.LinkDetach, err)
		if err != nil {
			s.logger.Debug("link detach failed", "endpoint", h.Endpoint, "error", err)
		}
		record(err)
	}

	if err := tr.Disconnect(ctx); err != nil {
		s.logger.Debug("transport disconnect failed", "error", err)
		record(err)
	}

	if trigger != nil {
		return trigger
	}
	return transport.Translate(first)
}

// captureLink runs on the teardown goroutine; loggers are thread-safe and
// capture reads only immutable session fields.
func (s *Session) captureLink(endpoint string, action log.LinkAction, err error) {
	s.capture(log.Event{
		Layer:    log.LayerLink,
		Category: log.CategoryLink,
		Endpoint: endpoint,
		Link:     &log.LinkEvent{Action: action, Err: errString(err)},
	})
}
