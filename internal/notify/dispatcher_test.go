package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/goph-accounts/internal/model"
)

type recorder struct {
	mu       sync.Mutex
	profiles []model.AccountSummary
	renames  []string
	mails    []string
	err      error
	block    chan struct{}
}

func (r *recorder) CreateProfile(ctx context.Context, a model.AccountSummary) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles = append(r.profiles, a)
	return r.err
}

func (r *recorder) UpdateUsername(_ context.Context, _ uuid.UUID, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renames = append(r.renames, username)
	return r.err
}

func (r *recorder) Send(_ context.Context, to, subject, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mails = append(r.mails, to+"|"+subject)
	return r.err
}

func TestDispatcher_DeliversAll(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	d := NewDispatcher(zaptest.NewLogger(t), rec, rec, Options{Workers: 2})

	acc := model.AccountSummary{ID: uuid.Must(uuid.NewV4()), Username: "alice"}
	d.ProfileCreated(acc)
	d.UsernameChanged(acc.ID, "alice2")
	d.OTPIssued("alice@example.com", "123456")
	d.PasswordResetRequested("alice@example.com", "654321")
	d.PasswordChanged("alice@example.com")

	require.NoError(t, d.Close(context.Background()))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.profiles, 1)
	require.Equal(t, []string{"alice2"}, rec.renames)
	require.Len(t, rec.mails, 3)
}

func TestDispatcher_FailuresAreSwallowed(t *testing.T) {
	t.Parallel()

	rec := &recorder{err: errors.New("downstream 500")}
	d := NewDispatcher(zaptest.NewLogger(t), rec, rec, Options{Workers: 1})

	d.ProfileCreated(model.AccountSummary{ID: uuid.Must(uuid.NewV4())})
	d.OTPIssued("a@example.com", "000000")
	require.NoError(t, d.Close(context.Background()))
}

func TestDispatcher_NilSendersAreSkipped(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(zap.NewNop(), nil, nil, Options{})
	d.ProfileCreated(model.AccountSummary{})
	d.UsernameChanged(uuid.Nil, "x")
	d.OTPIssued("a@example.com", "1")
	require.NoError(t, d.Close(context.Background()))
}

func TestDispatcher_QueueFullDrops(t *testing.T) {
	t.Parallel()

	rec := &recorder{block: make(chan struct{})}
	d := NewDispatcher(zap.NewNop(), rec, nil, Options{Workers: 1, Queue: 1})

	// one in flight (blocked), one queued, the rest dropped
	for range 5 {
		d.ProfileCreated(model.AccountSummary{ID: uuid.Must(uuid.NewV4())})
	}
	time.Sleep(20 * time.Millisecond)
	close(rec.block)
	require.NoError(t, d.Close(context.Background()))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.LessOrEqual(t, len(rec.profiles), 3)
	require.GreaterOrEqual(t, len(rec.profiles), 1)
}

func TestDispatcher_CloseDeadlineCancelsInFlight(t *testing.T) {
	t.Parallel()

	rec := &recorder{block: make(chan struct{})}
	d := NewDispatcher(zap.NewNop(), rec, nil, Options{Workers: 1})
	d.ProfileCreated(model.AccountSummary{ID: uuid.Must(uuid.NewV4())})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Close(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// closed dispatcher drops silently and Close is idempotent
	d.ProfileCreated(model.AccountSummary{})
	require.NoError(t, d.Close(context.Background()))
}
