package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "accounts.v1.Accounts"

// Method names.
const (
	MethodSignup                    = "Signup"
	MethodLogin                     = "Login"
	MethodRefreshToken              = "RefreshToken"
	MethodChangePassword            = "ChangePassword"
	MethodRequestOTP                = "RequestOTP"
	MethodVerifyOTP                 = "VerifyOTP"
	MethodForgotPassword            = "ForgotPassword"
	MethodResetPassword             = "ResetPassword"
	MethodCheckUsernameAvailability = "CheckUsernameAvailability"
	MethodGetProfile                = "GetProfile"
	MethodUpdateProfile             = "UpdateProfile"
)

// FullMethod returns "/accounts.v1.Accounts/<method>".
func FullMethod(method string) string { return "/" + ServiceName + "/" + method }

// AccountsServer is the server API. Every method exchanges google.protobuf.Struct payloads.
type AccountsServer interface {
	Signup(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RefreshToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ChangePassword(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RequestOTP(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VerifyOTP(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ForgotPassword(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResetPassword(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckUsernameAvailability(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedAccountsServer answers every method with codes.Unimplemented.
// Embed it to implement a subset of AccountsServer.
type UnimplementedAccountsServer struct{}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func (UnimplementedAccountsServer) Signup(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodSignup)
}
func (UnimplementedAccountsServer) Login(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodLogin)
}
func (UnimplementedAccountsServer) RefreshToken(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodRefreshToken)
}
func (UnimplementedAccountsServer) ChangePassword(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodChangePassword)
}
func (UnimplementedAccountsServer) RequestOTP(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodRequestOTP)
}
func (UnimplementedAccountsServer) VerifyOTP(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodVerifyOTP)
}
func (UnimplementedAccountsServer) ForgotPassword(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodForgotPassword)
}
func (UnimplementedAccountsServer) ResetPassword(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodResetPassword)
}
func (UnimplementedAccountsServer) CheckUsernameAvailability(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodCheckUsernameAvailability)
}
func (UnimplementedAccountsServer) GetProfile(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodGetProfile)
}
func (UnimplementedAccountsServer) UpdateProfile(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodUpdateProfile)
}

type unaryCall func(AccountsServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func handler(method string, call unaryCall) grpc.MethodDesc {
	full := FullMethod(method)
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AccountsServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(AccountsServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc describes accounts.v1.Accounts for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AccountsServer)(nil),
	Methods: []grpc.MethodDesc{
		handler(MethodSignup, AccountsServer.Signup),
		handler(MethodLogin, AccountsServer.Login),
		handler(MethodRefreshToken, AccountsServer.RefreshToken),
		handler(MethodChangePassword, AccountsServer.ChangePassword),
		handler(MethodRequestOTP, AccountsServer.RequestOTP),
		handler(MethodVerifyOTP, AccountsServer.VerifyOTP),
		handler(MethodForgotPassword, AccountsServer.ForgotPassword),
		handler(MethodResetPassword, AccountsServer.ResetPassword),
		handler(MethodCheckUsernameAvailability, AccountsServer.CheckUsernameAvailability),
		handler(MethodGetProfile, AccountsServer.GetProfile),
		handler(MethodUpdateProfile, AccountsServer.UpdateProfile),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterAccountsServer registers srv on s.
func RegisterAccountsServer(s grpc.ServiceRegistrar, srv AccountsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls accounts.v1.Accounts methods.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a client connection.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

// Call invokes method with in and returns the response payload.
func (c *Client) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
