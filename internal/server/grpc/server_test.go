package grpcserver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/goph-accounts/internal/convert"
	"github.com/and161185/goph-accounts/internal/errs"
	"github.com/and161185/goph-accounts/internal/model"
	"github.com/and161185/goph-accounts/internal/service"
)

type fakeService struct {
	id      uuid.UUID
	account model.AccountSummary
	tokens  model.Tokens

	err error

	lastInput  service.SignupInput
	lastRemote string
	lastPw     [2]string
}

var _ service.AccountService = (*fakeService)(nil)

func newFakeService() *fakeService {
	id := uuid.Must(uuid.NewV4())
	now := time.Now().UTC()
	return &fakeService{
		id:      id,
		account: model.AccountSummary{ID: id, Username: "alice7", Name: "Alice", Email: "a@example.com"},
		tokens: model.Tokens{
			AccessToken: "good", RefreshToken: "refresh",
			AccessExpiresAt: now.Add(15 * time.Minute), RefreshExpiresAt: now.Add(time.Hour),
		},
	}
}

func (f *fakeService) Signup(_ context.Context, in service.SignupInput) (model.AccountSummary, model.Tokens, error) {
	f.lastInput = in
	return f.account, f.tokens, f.err
}
func (f *fakeService) Login(_ context.Context, _, _, remote string) (model.AccountSummary, model.Tokens, error) {
	f.lastRemote = remote
	return f.account, f.tokens, f.err
}
func (f *fakeService) Refresh(_ context.Context, rt string) (model.Tokens, error) {
	if rt != f.tokens.RefreshToken {
		return model.Tokens{}, errs.ErrInvalidToken
	}
	return f.tokens, f.err
}
func (f *fakeService) Authenticate(_ context.Context, tok string) (uuid.UUID, error) {
	if tok != f.tokens.AccessToken {
		return uuid.Nil, errs.ErrInvalidToken
	}
	return f.id, nil
}
func (f *fakeService) ChangePassword(_ context.Context, id uuid.UUID, cur, next string) error {
	if id != f.id {
		return errs.ErrAccountNotFound
	}
	f.lastPw = [2]string{cur, next}
	return f.err
}
func (f *fakeService) RequestOTP(context.Context, string) error { return f.err }
func (f *fakeService) VerifyOTP(_ context.Context, _, code string) (model.OTPResult, error) {
	if code == "123456" {
		return model.OTPPassed, f.err
	}
	return model.OTPInvalid, f.err
}
func (f *fakeService) ForgotPassword(context.Context, string) error        { return f.err }
func (f *fakeService) ResetPassword(context.Context, string, string) error { return f.err }
func (f *fakeService) CheckUsername(_ context.Context, u string) (bool, []string, error) {
	if u == f.account.Username {
		return false, []string{"alice8", "alice9"}, f.err
	}
	return true, nil, f.err
}
func (f *fakeService) Profile(_ context.Context, id uuid.UUID) (model.AccountSummary, error) {
	if id != f.id {
		return model.AccountSummary{}, errs.ErrAccountNotFound
	}
	return f.account, f.err
}
func (f *fakeService) UpdateProfile(_ context.Context, _ uuid.UUID, name, username string) (model.AccountSummary, error) {
	a := f.account
	if name != "" {
		a.Name = name
	}
	if username != "" {
		a.Username = username
	}
	return a, f.err
}

const bufSize = 1 << 20

func startBufGRPC(t *testing.T, svc service.AccountService) (*Client, func()) {
	t.Helper()
	lis := bufconn.Listen(bufSize)
	log := zaptest.NewLogger(t)
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RecoverUnary(log),
		LoggingUnary(log),
		AuthUnary(svc),
	))
	RegisterAccountsServer(gs, New(svc))
	go func() { _ = gs.Serve(lis) }()
	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	stop := func() { _ = cc.Close(); gs.Stop(); _ = lis.Close() }
	return NewClient(cc), stop
}

func ctxAuth(token string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func call(t *testing.T, cl *Client, ctx context.Context, method string, req convert.Request) (convert.Response, error) {
	t.Helper()
	out, err := cl.Call(ctx, method, convert.ToProtoRequest(req))
	if err != nil {
		return convert.Response{}, err
	}
	resp, err := convert.FromProtoResponse(out)
	if err != nil {
		t.Fatalf("%s: decode response: %v", method, err)
	}
	return resp, nil
}

func TestServer_E2E_PublicMethods(t *testing.T) {
	t.Parallel()

	svc := newFakeService()
	cl, stop := startBufGRPC(t, svc)
	defer stop()
	ctx := context.Background()

	r, err := call(t, cl, ctx, MethodSignup, convert.Request{Name: "Alice", Email: "a@example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if r.Account == nil || r.Account.ID != svc.id || r.Tokens == nil || r.Tokens.AccessToken != "good" {
		t.Fatalf("bad signup response: %+v", r)
	}
	if svc.lastInput.Email != "a@example.com" || svc.lastInput.Password != "password1" {
		t.Fatalf("signup input not forwarded: %+v", svc.lastInput)
	}

	r, err = call(t, cl, ctx, MethodLogin, convert.Request{Email: "a@example.com", Password: "password1"})
	if err != nil || r.Tokens == nil || r.Tokens.RefreshToken != "refresh" {
		t.Fatalf("login: %v %+v", err, r)
	}
	if svc.lastRemote == "" {
		t.Fatalf("remote address not forwarded")
	}

	r, err = call(t, cl, ctx, MethodRefreshToken, convert.Request{RefreshToken: "refresh"})
	if err != nil || r.Tokens == nil {
		t.Fatalf("refresh: %v %+v", err, r)
	}
	_, err = call(t, cl, ctx, MethodRefreshToken, convert.Request{})
	if KindFromError(err) != errs.KindInvalidToken {
		t.Fatalf("want invalid_token on empty refresh, got %v", err)
	}

	r, err = call(t, cl, ctx, MethodVerifyOTP, convert.Request{Email: "a@example.com", Code: "123456"})
	if err != nil || r.OTPResult != "passed" {
		t.Fatalf("verify: %v %+v", err, r)
	}
	r, err = call(t, cl, ctx, MethodVerifyOTP, convert.Request{Email: "a@example.com", Code: "000000"})
	if err != nil || r.OTPResult != "invalid" {
		t.Fatalf("verify invalid: %v %+v", err, r)
	}

	for _, m := range []string{MethodRequestOTP, MethodForgotPassword, MethodResetPassword} {
		if _, err := call(t, cl, ctx, m, convert.Request{Email: "a@example.com", NewPassword: "password2"}); err != nil {
			t.Fatalf("%s: %v", m, err)
		}
	}

	r, err = call(t, cl, ctx, MethodCheckUsernameAvailability, convert.Request{Username: "alice7"})
	if err != nil || r.Available == nil || *r.Available || len(r.Suggestions) != 2 {
		t.Fatalf("check taken: %v %+v", err, r)
	}
	r, err = call(t, cl, ctx, MethodCheckUsernameAvailability, convert.Request{Username: "zed"})
	if err != nil || r.Available == nil || !*r.Available {
		t.Fatalf("check free: %v %+v", err, r)
	}
}

func TestServer_E2E_BearerMethods(t *testing.T) {
	t.Parallel()

	svc := newFakeService()
	cl, stop := startBufGRPC(t, svc)
	defer stop()

	for _, m := range []string{MethodGetProfile, MethodUpdateProfile, MethodChangePassword} {
		_, err := call(t, cl, context.Background(), m, convert.Request{})
		if status.Code(err) != codes.Unauthenticated {
			t.Fatalf("%s without token: want Unauthenticated, got %v", m, err)
		}
		_, err = call(t, cl, ctxAuth("forged"), m, convert.Request{})
		if KindFromError(err) != errs.KindInvalidToken {
			t.Fatalf("%s with bad token: want invalid_token, got %v", m, err)
		}
	}

	ctx := ctxAuth("good")
	r, err := call(t, cl, ctx, MethodGetProfile, convert.Request{})
	if err != nil || r.Account == nil || r.Account.Email != "a@example.com" || r.Tokens != nil {
		t.Fatalf("profile: %v %+v", err, r)
	}

	r, err = call(t, cl, ctx, MethodUpdateProfile, convert.Request{Username: "alice99"})
	if err != nil || r.Account == nil || r.Account.Username != "alice99" || r.Account.Name != "Alice" {
		t.Fatalf("update profile: %v %+v", err, r)
	}

	if _, err := call(t, cl, ctx, MethodChangePassword, convert.Request{CurrentPassword: "old-pass1", NewPassword: "new-pass1"}); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if svc.lastPw != [2]string{"old-pass1", "new-pass1"} {
		t.Fatalf("passwords not forwarded: %v", svc.lastPw)
	}
}

func TestServer_E2E_ErrorKinds(t *testing.T) {
	t.Parallel()

	svc := newFakeService()
	svc.err = errs.ErrDuplicateEmail
	cl, stop := startBufGRPC(t, svc)
	defer stop()

	_, err := call(t, cl, context.Background(), MethodSignup, convert.Request{Email: "a@example.com"})
	if status.Code(err) != codes.AlreadyExists || KindFromError(err) != errs.KindDuplicateEmail {
		t.Fatalf("want duplicate_email, got %v", err)
	}
	if st, _ := status.FromError(err); st.Message() != errs.ErrDuplicateEmail.Error() {
		t.Fatalf("message mismatch: %q", st.Message())
	}
}

func TestServer_BadPayload(t *testing.T) {
	t.Parallel()

	s := New(newFakeService())
	in, err := structpb.NewStruct(map[string]any{"email": 1.0})
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Login(context.Background(), in)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("want InvalidArgument, got %v", err)
	}
}

func TestServer_BearerHandlersRequireAccountID(t *testing.T) {
	t.Parallel()

	s := New(newFakeService())
	if _, err := s.GetProfile(context.Background(), nil); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("GetProfile: want Unauthenticated, got %v", err)
	}
	if _, err := s.UpdateProfile(context.Background(), nil); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("UpdateProfile: want Unauthenticated, got %v", err)
	}
	if _, err := s.ChangePassword(context.Background(), nil); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("ChangePassword: want Unauthenticated, got %v", err)
	}
}
