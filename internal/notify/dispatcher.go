// Package notify delivers best-effort outbound notifications: profile-service
// calls and emails. Delivery runs on a bounded worker pool so callers never wait
// on downstream I/O, and failures are logged rather than returned.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/and161185/goph-accounts/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ProfileSender talks to the downstream profile service.
type ProfileSender interface {
	CreateProfile(ctx context.Context, a model.AccountSummary) error
	UpdateUsername(ctx context.Context, accountID uuid.UUID, username string) error
}

// MailSender sends a plain-text email.
type MailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Options tunes the worker pool.
type Options struct {
	Workers int           // concurrent deliveries (default 4)
	Queue   int           // buffered jobs before dropping (default 256)
	Rate    float64       // deliveries per second, 0 = unlimited
	Burst   int           // token bucket burst (default 1)
	Timeout time.Duration // per-delivery timeout (default 10s)
}

type job struct {
	name string
	run  func(ctx context.Context) error
}

// Dispatcher queues and delivers notifications.
type Dispatcher struct {
	log      *zap.Logger
	profiles ProfileSender
	mail     MailSender
	lim      *rate.Limiter
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	wg     sync.WaitGroup
	stop   context.CancelFunc
}

// NewDispatcher starts the worker pool. Either sender may be nil, which
// disables that channel.
func NewDispatcher(log *zap.Logger, profiles ProfileSender, mail MailSender, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Queue <= 0 {
		opts.Queue = 256
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		log:      log,
		profiles: profiles,
		mail:     mail,
		lim:      rate.NewLimiter(limit, opts.Burst),
		timeout:  opts.Timeout,
		jobs:     make(chan job, opts.Queue),
		stop:     cancel,
	}
	for range opts.Workers {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	return d
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for j := range d.jobs {
		if err := d.lim.Wait(ctx); err != nil {
			d.log.Warn("notification dropped", zap.String("job", j.name), zap.Error(err))
			continue
		}
		jctx, cancel := context.WithTimeout(ctx, d.timeout)
		err := j.run(jctx)
		cancel()
		if err != nil {
			d.log.Warn("notification failed", zap.String("job", j.name), zap.Error(err))
			continue
		}
		d.log.Debug("notification delivered", zap.String("job", j.name))
	}
}

// enqueue never blocks; a full or closed queue drops the job.
func (d *Dispatcher) enqueue(name string, run func(ctx context.Context) error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("notification dropped: dispatcher closed", zap.String("job", name))
		return
	}
	select {
	case d.jobs <- job{name: name, run: run}:
	default:
		d.log.Warn("notification dropped: queue full", zap.String("job", name))
	}
}

// Close stops accepting jobs and waits for queued ones until ctx is done;
// then in-flight deliveries are cancelled.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.stop()
		return nil
	case <-ctx.Done():
		d.stop()
		<-done
		return errors.Join(errors.New("notify: pending deliveries cancelled"), ctx.Err())
	}
}

// ProfileCreated asks the profile service to create a profile for a new account.
func (d *Dispatcher) ProfileCreated(a model.AccountSummary) {
	if d.profiles == nil {
		return
	}
	d.enqueue("create_profile", func(ctx context.Context) error {
		return d.profiles.CreateProfile(ctx, a)
	})
}

// UsernameChanged propagates a username change to the profile service.
func (d *Dispatcher) UsernameChanged(accountID uuid.UUID, username string) {
	if d.profiles == nil {
		return
	}
	d.enqueue("update_username", func(ctx context.Context) error {
		return d.profiles.UpdateUsername(ctx, accountID, username)
	})
}

// OTPIssued emails a verification code.
func (d *Dispatcher) OTPIssued(email, code string) {
	d.sendMail("otp_mail", email, "Your verification code",
		fmt.Sprintf("Your verification code is %s. It expires in a few minutes.", code))
}

// PasswordResetRequested emails a password reset code.
func (d *Dispatcher) PasswordResetRequested(email, code string) {
	d.sendMail("reset_mail", email, "Password reset",
		fmt.Sprintf("Use code %s to confirm your password reset. If you did not ask for it, ignore this email.", code))
}

// PasswordChanged emails a security notice.
func (d *Dispatcher) PasswordChanged(email string) {
	d.sendMail("password_changed_mail", email, "Your password was changed",
		"The password of your account was just changed. If this was not you, reset it immediately.")
}

func (d *Dispatcher) sendMail(name, to, subject, body string) {
	if d.mail == nil {
		return
	}
	d.enqueue(name, func(ctx context.Context) error {
		return d.mail.Send(ctx, to, subject, body)
	})
}
