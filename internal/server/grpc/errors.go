package grpcserver

import (
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/goph-accounts/internal/errs"
)

// ErrorDomain is set on every errdetails.ErrorInfo this server returns.
const ErrorDomain = "accounts"

var codeByKind = map[errs.Kind]codes.Code{
	errs.KindDuplicateEmail:     codes.AlreadyExists,
	errs.KindDuplicateUsername:  codes.AlreadyExists,
	errs.KindAlreadyExists:      codes.AlreadyExists,
	errs.KindInvalidCredentials: codes.Unauthenticated,
	errs.KindExpiredToken:       codes.Unauthenticated,
	errs.KindInvalidToken:       codes.Unauthenticated,
	errs.KindAccountNotFound:    codes.NotFound,
	errs.KindOTPNotFound:        codes.NotFound,
	errs.KindNotFound:           codes.NotFound,
	errs.KindPasswordReuse:      codes.FailedPrecondition,
	errs.KindValidation:         codes.InvalidArgument,
	errs.KindRateLimited:        codes.ResourceExhausted,
}

// toStatus converts a service error to a gRPC status error carrying the
// error kind in an ErrorInfo detail. Internal errors do not leak their text.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	kind := errs.KindOf(err)
	code, ok := codeByKind[kind]
	if !ok {
		code = codes.Internal
	}
	st := status.New(code, errs.Detail(err))
	if withInfo, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: string(kind), Domain: ErrorDomain}); derr == nil {
		st = withInfo
	}
	return st.Err()
}

// KindFromError extracts the error kind from a status error returned by this server.
func KindFromError(err error) errs.Kind {
	st, ok := status.FromError(err)
	if !ok {
		return errs.KindInternal
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			return errs.Kind(info.GetReason())
		}
	}
	return errs.KindInternal
}
