package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"google.golang.org/grpc"

	"github.com/and161185/goph-accounts/internal/convert"
	grpcserver "github.com/and161185/goph-accounts/internal/server/grpc"
)

var errUsage = errors.New("usage")

type app struct {
	cl     *grpcserver.Client
	out    io.Writer
	secure bool
}

func (a *app) call(ctx context.Context, method string, req convert.Request, opts ...grpc.CallOption) (convert.Response, error) {
	out, err := a.cl.Call(ctx, method, convert.ToProtoRequest(req), opts...)
	if err != nil {
		return convert.Response{}, err
	}
	return convert.FromProtoResponse(out)
}

// bearer attaches the stored access token.
func (a *app) bearer() (grpc.CallOption, error) {
	tok, err := loadAccessToken()
	if err != nil {
		return nil, err
	}
	return grpc.PerRPCCredentials(bearerCreds{token: tok, secure: a.secure}), nil
}

// parse parses args into fs and reports missing required flags.
func parse(fs *flag.FlagSet, args []string, required ...string) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%s: %w", fs.Name(), err)
	}
	for _, name := range required {
		if f := fs.Lookup(name); f == nil || f.Value.String() == "" {
			return fmt.Errorf("%s: need -%s", fs.Name(), name)
		}
	}
	return nil
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	var req convert.Request

	switch cmd {
	case "signup":
		fs.StringVar(&req.Name, "name", "", "display name")
		fs.StringVar(&req.Email, "email", "", "email")
		fs.StringVar(&req.Password, "p", "", "password")
		fs.StringVar(&req.Username, "u", "", "username (optional)")
		if err := parse(fs, args, "name", "email", "p"); err != nil {
			return err
		}
		return a.session(ctx, grpcserver.MethodSignup, req)

	case "login":
		fs.StringVar(&req.Email, "email", "", "email")
		fs.StringVar(&req.Password, "p", "", "password")
		if err := parse(fs, args, "email", "p"); err != nil {
			return err
		}
		return a.session(ctx, grpcserver.MethodLogin, req)

	case "refresh":
		rt, err := loadRefreshToken()
		if err != nil {
			return err
		}
		req.RefreshToken = rt
		return a.session(ctx, grpcserver.MethodRefreshToken, req)

	case "logout":
		if err := removeTokens(); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "ok")
		return nil

	case "whoami":
		return a.authed(ctx, grpcserver.MethodGetProfile, req)

	case "update-profile":
		fs.StringVar(&req.Name, "name", "", "new display name")
		fs.StringVar(&req.Username, "u", "", "new username")
		if err := parse(fs, args); err != nil {
			return err
		}
		if req.Name == "" && req.Username == "" {
			return errors.New("update-profile: need -name or -u")
		}
		return a.authed(ctx, grpcserver.MethodUpdateProfile, req)

	case "change-password":
		fs.StringVar(&req.CurrentPassword, "current", "", "current password")
		fs.StringVar(&req.NewPassword, "new", "", "new password")
		if err := parse(fs, args, "current", "new"); err != nil {
			return err
		}
		return a.authed(ctx, grpcserver.MethodChangePassword, req)

	case "check-username":
		fs.StringVar(&req.Username, "u", "", "username")
		if err := parse(fs, args, "u"); err != nil {
			return err
		}
		return a.public(ctx, grpcserver.MethodCheckUsernameAvailability, req)

	case "request-otp", "forgot-password":
		fs.StringVar(&req.Email, "email", "", "email")
		if err := parse(fs, args, "email"); err != nil {
			return err
		}
		method := grpcserver.MethodRequestOTP
		if cmd == "forgot-password" {
			method = grpcserver.MethodForgotPassword
		}
		return a.public(ctx, method, req)

	case "verify-otp":
		fs.StringVar(&req.Email, "email", "", "email")
		fs.StringVar(&req.Code, "code", "", "one-time password")
		if err := parse(fs, args, "email", "code"); err != nil {
			return err
		}
		return a.public(ctx, grpcserver.MethodVerifyOTP, req)

	case "reset-password":
		fs.StringVar(&req.Email, "email", "", "email")
		fs.StringVar(&req.NewPassword, "new", "", "new password")
		if err := parse(fs, args, "email", "new"); err != nil {
			return err
		}
		return a.public(ctx, grpcserver.MethodResetPassword, req)

	default:
		return errUsage
	}
}

// session calls a token-issuing method and stores the returned pair.
func (a *app) session(ctx context.Context, method string, req convert.Request) error {
	resp, err := a.call(ctx, method, req)
	if err != nil {
		return err
	}
	if resp.Tokens == nil {
		return errors.New("server returned no tokens")
	}
	if err := saveTokens(*resp.Tokens); err != nil {
		return err
	}
	if resp.Account != nil {
		printJSON(a.out, resp.Account)
	} else {
		fmt.Fprintln(a.out, "ok")
	}
	return nil
}

func (a *app) public(ctx context.Context, method string, req convert.Request) error {
	resp, err := a.call(ctx, method, req)
	if err != nil {
		return err
	}
	a.print(resp)
	return nil
}

func (a *app) authed(ctx context.Context, method string, req convert.Request) error {
	opt, err := a.bearer()
	if err != nil {
		return err
	}
	resp, err := a.call(ctx, method, req, opt)
	if err != nil {
		return err
	}
	a.print(resp)
	return nil
}

func (a *app) print(resp convert.Response) {
	switch {
	case resp.Account != nil:
		printJSON(a.out, resp.Account)
	case resp.Available != nil:
		printJSON(a.out, map[string]any{"available": *resp.Available, "suggestions": resp.Suggestions})
	case resp.OTPResult != "":
		fmt.Fprintln(a.out, resp.OTPResult)
	default:
		fmt.Fprintln(a.out, "ok")
	}
}
