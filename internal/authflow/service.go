package authflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"authmail/pkg/accounts"
	"authmail/pkg/analytics"
	"authmail/pkg/authtokens"
	"authmail/pkg/claims"
	"authmail/pkg/jobs"
	"authmail/pkg/mailer"
	"authmail/pkg/metrics"
)

var (
	// ErrNotAuthorized means the request's Origin/Referer is not in the
	// account's allow-list. No token is created and nothing about the
	// account or email is revealed.
	ErrNotAuthorized      = errors.New("request origin not authorized")
	ErrRedirectNotAllowed = errors.New("redirect uri not registered")
	// ErrDeliveryFailed means the login email could not be queued. The
	// token row is left in place: it is unguessable and expires on its
	// own, and the requester is told to retry.
	ErrDeliveryFailed = errors.New("login email delivery failed")
)

// JobDeliverLogin is the queue job kind for sending a login email.
const JobDeliverLogin = "deliver_login_email"

// DeliveryJob carries only the token ref; the worker re-reads the token
// and account so a stale queue entry never sends outdated content.
type DeliveryJob struct {
	Ref string `json:"ref"`
}

// Service orchestrates the passwordless login protocol: origin-authorized
// token creation, asynchronous email delivery, and the one-time
// consumption that produces a signed identity claim.
type Service struct {
	accounts accounts.Store
	tokens   authtokens.Store
	queue    jobs.Queue
	sender   mailer.Sender
	codec    claims.Codec
	tracker  analytics.Tracker
	log      *zap.SugaredLogger

	baseURL  string // public base of the auth-service
	tokenTTL time.Duration
	claimTTL time.Duration
}

func NewService(
	accountStore accounts.Store,
	tokenStore authtokens.Store,
	queue jobs.Queue,
	sender mailer.Sender,
	tracker analytics.Tracker,
	log *zap.SugaredLogger,
	baseURL string,
	tokenTTL, claimTTL time.Duration,
) *Service {
	return &Service{
		accounts: accountStore,
		tokens:   tokenStore,
		queue:    queue,
		sender:   sender,
		codec:    claims.New(),
		tracker:  tracker,
		log:      log,
		baseURL:  baseURL,
		tokenTTL: tokenTTL,
		claimTTL: claimTTL,
	}
}

// CreateLogin validates the requesting origin and, if allowed, creates a
// fresh login token in state "sent" and queues the email carrying its
// link. Returns the created token; the ref is never exposed to the
// requesting site, only to the recipient's mailbox.
func (s *Service) CreateLogin(ctx context.Context, accountID, email, redirectURI, clientState, origin, referer string) (authtokens.Token, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return authtokens.Token{}, err
	}
	if !account.Active || !account.AuthorizeRequest(origin, referer) {
		s.tracker.Track(email, analytics.EventValidationError,
			map[string]any{"event": analytics.EventAuthCreated, "detail": "origin not authorized"})
		return authtokens.Token{}, ErrNotAuthorized
	}
	if !account.AllowsRedirect(redirectURI) {
		s.tracker.Track(email, analytics.EventValidationError,
			map[string]any{"event": analytics.EventAuthCreated, "detail": "redirect not registered"})
		return authtokens.Token{}, ErrRedirectNotAllowed
	}

	t, err := s.tokens.Create(ctx, authtokens.Token{
		AccountID:   account.ID,
		Email:       email,
		Redirect:    redirectURI,
		ClientState: clientState,
	})
	if err != nil {
		return authtokens.Token{}, err
	}

	if err := s.queue.Enqueue(ctx, JobDeliverLogin, DeliveryJob{Ref: t.Ref}); err != nil {
		s.log.Errorw("delivery enqueue", "ref", t.Ref, "err", err)
		metrics.DeliveryOutcomes.WithLabelValues("enqueue_error").Inc()
		return authtokens.Token{}, ErrDeliveryFailed
	}

	metrics.TokensIssued.Inc()
	s.tracker.Track(email, analytics.EventAuthCreated, map[string]any{"account": account.Name})
	return t, nil
}

// MarkOpened records that the login email was rendered. Fire and forget:
// no outcome is reported, matching the tracking pixel contract.
func (s *Service) MarkOpened(ctx context.Context, ref string) {
	opened, err := s.tokens.MarkOpened(ctx, ref)
	if err != nil {
		s.log.Warnw("mark opened", "ref", ref, "err", err)
		return
	}
	if !opened {
		return
	}
	// The store reports the transition exactly once, so concurrent
	// pixel fetches emit a single event.
	t, err := s.tokens.Get(ctx, ref)
	if err != nil {
		return
	}
	s.tracker.Track(t.Email, analytics.EventAuthOpened, nil)
}

// Consume performs the one-time transition for ref and returns the full
// redirect URL carrying the signed claim. Exactly one of N concurrent
// calls for the same ref succeeds; the rest fail with
// authtokens.ErrAlreadyConsumed.
func (s *Service) Consume(ctx context.Context, ref string) (string, error) {
	var cutoff time.Time
	if s.tokenTTL > 0 {
		cutoff = time.Now().Add(-s.tokenTTL)
	}
	t, err := s.tokens.Consume(ctx, ref, cutoff)
	if err != nil {
		switch {
		case errors.Is(err, authtokens.ErrNotFound):
			metrics.ConsumeFailures.WithLabelValues("not_found").Inc()
		case errors.Is(err, authtokens.ErrAlreadyConsumed):
			metrics.ConsumeFailures.WithLabelValues("already_consumed").Inc()
		case errors.Is(err, authtokens.ErrTokenExpired):
			metrics.ConsumeFailures.WithLabelValues("expired").Inc()
		}
		return "", err
	}

	account, err := s.accounts.GetByID(ctx, t.AccountID)
	if err != nil {
		return "", err
	}

	signup, err := s.tokens.RecordFirstLogin(ctx, t.AccountID, t.Email)
	if err != nil {
		// The consumption already won its race; classify conservatively
		// rather than failing the login.
		s.log.Errorw("first login record", "ref", ref, "err", err)
		signup = false
	}

	payload, err := s.codec.Sign(account.Secret, t.Email, signup, s.claimTTL)
	if err != nil {
		return "", err
	}

	metrics.TokensConsumed.Inc()
	s.tracker.Track(t.Email, analytics.EventAuthConsumed, map[string]any{"account": account.Name, "signup": signup})

	loc := t.Redirect + "?payload=" + url.QueryEscape(payload)
	if t.ClientState != "" {
		loc += "&state=" + url.QueryEscape(t.ClientState)
	}
	return loc, nil
}

// DeliverLogin is the queue handler that renders and sends one login
// email. A send failure is returned so the worker retries; token state is
// never touched here.
func (s *Service) DeliverLogin(ctx context.Context, payload json.RawMessage) error {
	var job DeliveryJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return err
	}
	t, err := s.tokens.Get(ctx, job.Ref)
	if err != nil {
		// The token is gone; there is nothing to deliver and no point
		// retrying.
		s.log.Warnw("deliver: token missing", "ref", job.Ref)
		return nil
	}
	if t.State == authtokens.StateConsumed {
		return nil
	}
	account, err := s.accounts.GetByID(ctx, t.AccountID)
	if err != nil {
		return err
	}

	data := mailer.LoginEmailData{
		Account: account.Name,
		Link:    s.baseURL + "/login/" + t.Ref,
		Pixel:   s.baseURL + "/track/" + t.Ref + "/opened.gif",
	}
	html, text, err := mailer.RenderLoginEmail(account.HTMLTemplate, account.TextTemplate, data)
	if err != nil {
		return err
	}

	err = s.sender.Send(ctx, mailer.Message{
		To:       t.Email,
		ReplyTo:  account.ReplyTo,
		Subject:  fmt.Sprintf("Sign in to %s", account.Name),
		BodyHTML: html,
		BodyText: text,
		Tag:      "login",
	})
	if err != nil {
		metrics.DeliveryOutcomes.WithLabelValues("error").Inc()
		return err
	}
	metrics.DeliveryOutcomes.WithLabelValues("sent").Inc()
	return nil
}
