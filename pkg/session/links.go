package session

import (
	"github.com/hublink/hublink-go/pkg/link"
	"github.com/hublink/hublink-go/pkg/log"
	"github.com/hublink/hublink-go/pkg/message"
	"github.com/hublink/hublink-go/pkg/receiver"
	"github.com/hublink/hublink-go/pkg/transport"
)

// sendMessage sends ev.msg over the cached device-bound link.
func (s *Session) sendMessage(ev *event) {
	s.cache.GetOrAttach(s.ctx, link.EndpointMessages, func(h *link.Handle, err error) {
		if err != nil {
			ev.fail(err)
			return
		}

		msg := *ev.msg
		msg.To = message.DeviceAddress(ev.deviceID)
		sender := h.Sender()
		ctx := s.ctx

		s.capture(log.Event{
			Direction: log.DirectionOut,
			Layer:     log.LayerLink,
			Category:  log.CategoryMessage,
			Endpoint:  link.EndpointMessages,
			Message: &log.MessageEvent{
				MessageID: msg.MessageID,
				To:        msg.To,
				Size:      len(msg.Data),
			},
		})

		// The send result does not affect session state; answer directly.
		go func() {
			ev.fail(transport.Translate(sender.Send(ctx, &msg)))
		}()
	})
}

// getReceiver answers ev with the Receiver for endpoint, reusing the
// existing adapter while its link is the cached one.
func (s *Session) getReceiver(ev *event, endpoint string) {
	s.cache.GetOrAttach(s.ctx, endpoint, func(h *link.Handle, err error) {
		if err != nil {
			ev.fail(err)
			return
		}

		rl := h.Receiver()
		r, ok := s.receivers[endpoint]
		if !ok || r.Link() != rl {
			r = receiver.New(rl, s.logger)
			s.receivers[endpoint] = r
		}
		ev.respond(result{receiver: r})
	})
}

func (s *Session) linkAttached(endpoint string) {
	s.cfg.Metrics.LinkAttached(endpoint)
	s.capture(log.Event{
		Layer:    log.LayerLink,
		Category: log.CategoryLink,
		Endpoint: endpoint,
		Link:     &log.LinkEvent{Action: log.LinkAttach},
	})
}

func (s *Session) linkInvalidated(endpoint string, err error) {
	delete(s.receivers, endpoint)
	s.cfg.Metrics.LinkInvalidated(endpoint)
	s.logger.Info("link invalidated", "endpoint", endpoint, "error", err)
	s.capture(log.Event{
		Layer:    log.LayerLink,
		Category: log.CategoryLink,
		Endpoint: endpoint,
		Link:     &log.LinkEvent{Action: log.LinkInvalidate, Err: errString(err)},
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
