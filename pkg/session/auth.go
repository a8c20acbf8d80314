package session

import (
	"github.com/hublink/hublink-go/pkg/credential"
	"github.com/hublink/hublink-go/pkg/log"
	"github.com/hublink/hublink-go/pkg/metrics"
	"github.com/hublink/hublink-go/pkg/transport"
)

// startConnect issues the transport connect for the current epoch.
func (s *Session) startConnect() {
	s.cfg.Metrics.ConnectAttempt()

	// A stored signer may have been created long before this connect.
	if signer, ok := s.cred.(*credential.Signer); ok {
		s.cred = signer.Extend(s.clock.Now())
	}

	epoch := s.epoch
	cfg := transport.Config{
		Host:        s.cfg.Host,
		TLSConfig:   s.cfg.TLSConfig,
		IdleTimeout: s.cfg.IdleTimeout,
	}
	tr := s.cfg.Transport
	ctx := s.ctx

	s.logger.Debug("connecting", "epoch", epoch)
	go func() {
		err := tr.Connect(ctx, cfg)
		s.post(&event{kind: evConnected, epoch: epoch, err: err})
	}()
}

// startAuthentication runs the CBS handshake for the current epoch.
func (s *Session) startAuthentication() {
	epoch := s.epoch
	token, tokenErr := s.cred.Token()
	audience := s.cfg.Host
	tr := s.cfg.Transport
	ctx := s.ctx

	go func() {
		err := tokenErr
		if err == nil {
			err = tr.BeginAuthentication(ctx)
		}
		if err == nil {
			err = tr.Authenticate(ctx, audience, token)
		}
		s.post(&event{kind: evAuthenticated, epoch: epoch, err: err})
	}()
}

// reauthenticate presents cred on the existing connection. origin is the
// UpdateCredential command, or nil for a renewal.
func (s *Session) reauthenticate(cred credential.Credential, trigger log.AuthTrigger, origin *event) {
	epoch := s.epoch
	audience := s.cfg.Host
	tr := s.cfg.Transport
	ctx := s.ctx
	credGen := s.credGen

	token, tokenErr := cred.Token()
	s.logger.Debug("re-authenticating", "trigger", trigger)

	go func() {
		err := tokenErr
		if err == nil {
			err = tr.Authenticate(ctx, audience, token)
		}
		s.post(&event{
			kind:    evReauthenticated,
			epoch:   epoch,
			err:     err,
			cred:    cred,
			trigger: trigger,
			origin:  origin,
			credGen: credGen,
		})
	}()
}

// renewCredential extends the signer and re-authenticates with it.
func (s *Session) renewCredential() {
	signer, ok := s.cred.(*credential.Signer)
	if !ok {
		return
	}
	s.reauthenticate(signer.Extend(s.clock.Now()), log.AuthRenewal, nil)
}

func (s *Session) finishReauthentication(ev *event) State {
	ok := ev.err == nil
	if ev.credGen != s.credGen {
		return s.dropReauthentication(ev, ok)
	}
	if ok {
		s.cred = ev.cred
		s.armRenewal()
	}
	s.cfg.Metrics.Authentication(metricsAuthKind(ev.trigger), ok)
	s.captureAuth(ev.trigger, ok, ev.cred)

	if ok {
		ev.origin.respond(result{})
		return StateAuthenticated
	}

	err := transport.Translate(ev.err)
	if ev.trigger == log.AuthRenewal {
		// The token stays valid until expiry; the hub closes the connection
		// after that, which surfaces as a transport error.
		s.logger.Warn("token renewal failed", "error", err)
		return StateAuthenticated
	}

	s.logger.Warn("credential update rejected", "error", err)
	s.cred = ev.cred
	s.notify = true
	return s.beginTeardown(err, ev.origin)
}

// dropReauthentication finishes an exchange for a credential that was
// replaced while it was in flight. The replacement owns s.cred and the
// renewal timer, so neither is touched.
func (s *Session) dropReauthentication(ev *event, ok bool) State {
	s.cfg.Metrics.Authentication(metricsAuthKind(ev.trigger), ok)
	s.captureAuth(ev.trigger, ok, ev.cred)
	s.logger.Debug("credential replaced during re-authentication", "trigger", ev.trigger, "accepted", ok)

	if ok {
		ev.origin.respond(result{})
	} else {
		ev.origin.fail(transport.Translate(ev.err))
	}
	return StateAuthenticated
}

// armRenewal schedules renewal for a signer and cancels it otherwise.
func (s *Session) armRenewal() {
	signer, ok := s.cred.(*credential.Signer)
	if !ok {
		s.renewal.Cancel()
		return
	}
	delay := s.renewal.Arm(signer.Expiry, func() {
		s.handle(&event{kind: evRenew})
	})
	s.logger.Debug("renewal armed", "expiry", signer.Expiry, "delay", delay)
}

func (s *Session) captureAuth(trigger log.AuthTrigger, ok bool, cred credential.Credential) {
	ae := &log.AuthEvent{Trigger: trigger, Success: ok}
	if signer, isSigner := cred.(*credential.Signer); isSigner {
		expiry := signer.Expiry
		ae.Expiry = &expiry
	}
	s.capture(log.Event{
		Layer:    log.LayerTransport,
		Category: log.CategoryAuth,
		Auth:     ae,
	})
}

func metricsAuthKind(trigger log.AuthTrigger) string {
	switch trigger {
	case log.AuthUpdate:
		return metrics.AuthUpdate
	case log.AuthRenewal:
		return metrics.AuthRenewal
	default:
		return metrics.AuthInitial
	}
}
