// Package convert maps domain values to and from google.protobuf.Struct payloads.
package convert

import (
	"fmt"
	"time"

	model "github.com/and161185/goph-accounts/internal/model"
	u "github.com/gofrs/uuid/v5"
	"google.golang.org/protobuf/types/known/structpb"
)

// Wire field names.
const (
	FieldUsername        = "username"
	FieldName            = "name"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
	FieldRefreshToken    = "refresh_token"
	FieldCode            = "code"

	FieldID               = "id"
	FieldAccount          = "account"
	FieldTokens           = "tokens"
	FieldAccessToken      = "access_token"
	FieldAccessExpiresAt  = "access_expires_at"
	FieldRefreshExpiresAt = "refresh_expires_at"
	FieldResult           = "result"
	FieldAvailable        = "available"
	FieldSuggestions      = "suggestions"
)

// --- helpers ---

func str(v string) *structpb.Value { return structpb.NewStringValue(v) }

func ts(t time.Time) *structpb.Value {
	if t.IsZero() {
		return nil
	}
	return str(t.UTC().Format(time.RFC3339Nano))
}

// putString sets name unless v is empty.
func putString(s *structpb.Struct, name, v string) {
	if v != "" {
		s.Fields[name] = str(v)
	}
}

func getString(s *structpb.Struct, name string) (string, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return "", nil
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("field %q: want string", name)
	}
	return sv.StringValue, nil
}

func getTime(s *structpb.Struct, name string) (time.Time, error) {
	raw, err := getString(s, name)
	if err != nil || raw == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("field %q: %w", name, err)
	}
	return t, nil
}

func getStruct(s *structpb.Struct, name string) (*structpb.Struct, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return nil, nil
	}
	sv, ok := v.GetKind().(*structpb.Value_StructValue)
	if !ok {
		return nil, fmt.Errorf("field %q: want object", name)
	}
	return sv.StructValue, nil
}

// --- Requests ---

// Request is the union of request fields. Each method reads the fields it needs.
type Request struct {
	Username        string
	Name            string
	Email           string
	Password        string
	CurrentPassword string
	NewPassword     string
	RefreshToken    string
	Code            string
}

// ToProtoRequest encodes r, omitting empty fields.
func ToProtoRequest(r Request) *structpb.Struct {
	s := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	putString(s, FieldUsername, r.Username)
	putString(s, FieldName, r.Name)
	putString(s, FieldEmail, r.Email)
	putString(s, FieldPassword, r.Password)
	putString(s, FieldCurrentPassword, r.CurrentPassword)
	putString(s, FieldNewPassword, r.NewPassword)
	putString(s, FieldRefreshToken, r.RefreshToken)
	putString(s, FieldCode, r.Code)
	return s
}

// FromProtoRequest decodes a request payload. Unknown fields are ignored;
// a known field of the wrong type is an error.
func FromProtoRequest(s *structpb.Struct) (Request, error) {
	var (
		r    Request
		err  error
		dest = []struct {
			name string
			to   *string
		}{
			{FieldUsername, &r.Username},
			{FieldName, &r.Name},
			{FieldEmail, &r.Email},
			{FieldPassword, &r.Password},
			{FieldCurrentPassword, &r.CurrentPassword},
			{FieldNewPassword, &r.NewPassword},
			{FieldRefreshToken, &r.RefreshToken},
			{FieldCode, &r.Code},
		}
	)
	for _, d := range dest {
		if *d.to, err = getString(s, d.name); err != nil {
			return Request{}, err
		}
	}
	return r, nil
}

// --- Responses ---

// Response is the union of response fields. Nil and empty members are omitted.
type Response struct {
	Account     *model.AccountSummary
	Tokens      *model.Tokens
	OTPResult   string
	Available   *bool
	Suggestions []string
}

// ToProtoAccount encodes an account summary.
func ToProtoAccount(a model.AccountSummary) *structpb.Struct {
	s := &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldID: str(a.ID.String()),
	}}
	putString(s, FieldUsername, a.Username)
	putString(s, FieldName, a.Name)
	putString(s, FieldEmail, a.Email)
	return s
}

// FromProtoAccount decodes an account summary.
func FromProtoAccount(s *structpb.Struct) (model.AccountSummary, error) {
	var (
		a   model.AccountSummary
		err error
	)
	raw, err := getString(s, FieldID)
	if err != nil {
		return a, err
	}
	if a.ID, err = u.FromString(raw); err != nil {
		return a, fmt.Errorf("invalid id: %w", err)
	}
	if a.Username, err = getString(s, FieldUsername); err != nil {
		return a, err
	}
	if a.Name, err = getString(s, FieldName); err != nil {
		return a, err
	}
	a.Email, err = getString(s, FieldEmail)
	return a, err
}

// ToProtoTokens encodes a token pair.
func ToProtoTokens(t model.Tokens) *structpb.Struct {
	s := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	putString(s, FieldAccessToken, t.AccessToken)
	putString(s, FieldRefreshToken, t.RefreshToken)
	if v := ts(t.AccessExpiresAt); v != nil {
		s.Fields[FieldAccessExpiresAt] = v
	}
	if v := ts(t.RefreshExpiresAt); v != nil {
		s.Fields[FieldRefreshExpiresAt] = v
	}
	return s
}

// FromProtoTokens decodes a token pair.
func FromProtoTokens(s *structpb.Struct) (model.Tokens, error) {
	var (
		t   model.Tokens
		err error
	)
	if t.AccessToken, err = getString(s, FieldAccessToken); err != nil {
		return t, err
	}
	if t.RefreshToken, err = getString(s, FieldRefreshToken); err != nil {
		return t, err
	}
	if t.AccessExpiresAt, err = getTime(s, FieldAccessExpiresAt); err != nil {
		return t, err
	}
	t.RefreshExpiresAt, err = getTime(s, FieldRefreshExpiresAt)
	return t, err
}

// ToProtoResponse encodes r.
func ToProtoResponse(r Response) *structpb.Struct {
	s := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	if r.Account != nil {
		s.Fields[FieldAccount] = structpb.NewStructValue(ToProtoAccount(*r.Account))
	}
	if r.Tokens != nil {
		s.Fields[FieldTokens] = structpb.NewStructValue(ToProtoTokens(*r.Tokens))
	}
	putString(s, FieldResult, r.OTPResult)
	if r.Available != nil {
		s.Fields[FieldAvailable] = structpb.NewBoolValue(*r.Available)
	}
	if len(r.Suggestions) > 0 {
		vals := make([]*structpb.Value, 0, len(r.Suggestions))
		for _, sg := range r.Suggestions {
			vals = append(vals, str(sg))
		}
		s.Fields[FieldSuggestions] = structpb.NewListValue(&structpb.ListValue{Values: vals})
	}
	return s
}

// FromProtoResponse decodes a response payload.
func FromProtoResponse(s *structpb.Struct) (Response, error) {
	var r Response

	acc, err := getStruct(s, FieldAccount)
	if err != nil {
		return r, err
	}
	if acc != nil {
		a, err := FromProtoAccount(acc)
		if err != nil {
			return r, fmt.Errorf("account: %w", err)
		}
		r.Account = &a
	}

	tok, err := getStruct(s, FieldTokens)
	if err != nil {
		return r, err
	}
	if tok != nil {
		t, err := FromProtoTokens(tok)
		if err != nil {
			return r, fmt.Errorf("tokens: %w", err)
		}
		r.Tokens = &t
	}

	if r.OTPResult, err = getString(s, FieldResult); err != nil {
		return r, err
	}

	if v, ok := s.GetFields()[FieldAvailable]; ok {
		b, ok := v.GetKind().(*structpb.Value_BoolValue)
		if !ok {
			return r, fmt.Errorf("field %q: want bool", FieldAvailable)
		}
		r.Available = &b.BoolValue
	}

	if v, ok := s.GetFields()[FieldSuggestions]; ok {
		lv, ok := v.GetKind().(*structpb.Value_ListValue)
		if !ok {
			return r, fmt.Errorf("field %q: want list", FieldSuggestions)
		}
		for i, item := range lv.ListValue.GetValues() {
			sv, ok := item.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return r, fmt.Errorf("suggestions[%d]: want string", i)
			}
			r.Suggestions = append(r.Suggestions, sv.StringValue)
		}
	}
	return r, nil
}
