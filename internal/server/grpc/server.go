// Package grpcserver exposes the accounts gRPC API handlers.
package grpcserver

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/and161185/goph-accounts/internal/convert"
	"github.com/and161185/goph-accounts/internal/errs"
	"github.com/and161185/goph-accounts/internal/model"
	"github.com/and161185/goph-accounts/internal/service"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Server wires the account service into gRPC handlers.
type Server struct {
	svc service.AccountService
}

var _ AccountsServer = (*Server)(nil)

// New constructs a gRPC server with the injected service.
func New(svc service.AccountService) *Server {
	return &Server{svc: svc}
}

func decode(in *structpb.Struct) (convert.Request, error) {
	req, err := convert.FromProtoRequest(in)
	if err != nil {
		return convert.Request{}, status.Errorf(codes.InvalidArgument, "bad request: %v", err)
	}
	return req, nil
}

func empty() *structpb.Struct { return convert.ToProtoResponse(convert.Response{}) }

func withAccount(a model.AccountSummary, t *model.Tokens) *structpb.Struct {
	return convert.ToProtoResponse(convert.Response{Account: &a, Tokens: t})
}

// remoteIP returns the peer host without the port, so reconnects from one
// address share a login throttle bucket.
func remoteIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	if tcp, ok := p.Addr.(*net.TCPAddr); ok {
		return tcp.IP.String()
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// --- Public ---

// Signup registers an account and returns it with a token pair.
func (s *Server) Signup(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decode(in)
	if err != nil {
		return nil, err
	}
	a, tok, err := s.svc.Signup(ctx, service.SignupInput{
		Username: req.Username,
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return withAccount(a, &tok), nil
}

// Login authenticates by email and password.
func (s *Server) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decode(in)
	if err != nil {
		return nil, err
	}
	a, tok, err := s.svc.Login(ctx, req.Email, req.Password, remoteIP(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return withAccount(a, &tok), nil
}

// RefreshToken exchanges a refresh token for a new pair.
func (s *Server) RefreshToken(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decode(in)
	if err != nil {
		return nil, err
	}
	if req.RefreshToken == "" {
		return nil, toStatus(errs.ErrInvalidToken)
	}
	tok, err := s.svc.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return nil, toStatus(err)
	}
	return convert.ToProtoResponse(convert.Response{Tokens: &tok}), nil
}

// RequestOTP emails a one-time password.
func (s *Server) RequestOTP(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decode(in)
	if err != nil {
		return nil, err
	}
	if err := s.svc.RequestOTP(ctx, req.Email); err != nil {
		return nil, toStatus(err)
	}
	return empty(), nil
}

// VerifyOTP reports passed, expired or invalid.
func (s *Server) VerifyOTP(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decode(in)
	if err != nil {
		return nil, err
	}
	res, err := s.svc.VerifyOTP(ctx, req.Email, req.Code)
	if err != nil {
		return nil, toStatus(err)
	}
	return convert.ToProtoResponse(convert.Response{OTPResult: res.String()}), nil
}

// ForgotPassword starts a reset. The response does not depend on whether the email exists.
func (s *Server) ForgotPassword(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decode(in)
	if err != nil {
		return nil, err
	}
	if err := s.svc.ForgotPassword(ctx, req.Email); err != nil {
		return nil, toStatus(err)
	}
	return empty(), nil
}

// ResetPassword sets a new password. The response does not depend on whether the email exists.
func (s *Server) ResetPassword(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decode(in)
	if err != nil {
		return nil, err
	}
	if err := s.svc.ResetPassword(ctx, req.Email, req.NewPassword); err != nil {
		return nil, toStatus(err)
	}
	return empty(), nil
}

// CheckUsernameAvailability reports availability and suggestions.
func (s *Server) CheckUsernameAvailability(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decode(in)
	if err != nil {
		return nil, err
	}
	ok, sugg, err := s.svc.CheckUsername(ctx, req.Username)
	if err != nil {
		return nil, toStatus(err)
	}
	return convert.ToProtoResponse(convert.Response{Available: &ok, Suggestions: sugg}), nil
}

// --- Bearer ---

// ChangePassword replaces the caller's password.
func (s *Server) ChangePassword(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, ok := AccountIDFromCtx(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	req, err := decode(in)
	if err != nil {
		return nil, err
	}
	if err := s.svc.ChangePassword(ctx, id, req.CurrentPassword, req.NewPassword); err != nil {
		return nil, toStatus(err)
	}
	return empty(), nil
}

// GetProfile returns the caller's account.
func (s *Server) GetProfile(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, ok := AccountIDFromCtx(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	a, err := s.svc.Profile(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return withAccount(a, nil), nil
}

// UpdateProfile changes the caller's name and/or username.
func (s *Server) UpdateProfile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, ok := AccountIDFromCtx(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	req, err := decode(in)
	if err != nil {
		return nil, err
	}
	a, err := s.svc.UpdateProfile(ctx, id, req.Name, req.Username)
	if err != nil {
		return nil, toStatus(err)
	}
	return withAccount(a, nil), nil
}

// bearerMethods require "authorization: Bearer <access token>".
var bearerMethods = map[string]bool{
	FullMethod(MethodChangePassword): true,
	FullMethod(MethodGetProfile):     true,
	FullMethod(MethodUpdateProfile):  true,
}

var errNoBearer = errors.New("no bearer token")

func bearerTokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata")
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			t := strings.TrimSpace(v[7:])
			if t != "" {
				return t, nil
			}
		}
	}
	return "", errNoBearer
}
