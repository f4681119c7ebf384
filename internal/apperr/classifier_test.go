package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassify_Precedence(t *testing.T) {
	tests := []struct {
		name   string
		bundle Bundle
		want   Kind
	}{
		{"profile missing", Bundle{Message: "User profile data missing"}, KindProfileDataMissing},
		{"profile beats unauthorized", Bundle{Message: "unauthorized: profile not found", HTTPStatus: 401}, KindProfileDataMissing},
		{"duplicate", Bundle{Message: "A user with the same id, email, or phone already exists in this project."}, KindAccountAlreadyExists},
		{"conflict status", Bundle{Message: "conflict", HTTPStatus: http.StatusConflict}, KindAccountAlreadyExists},
		{"user not found", Bundle{Message: "User not found"}, KindUserNotFound},
		{"invalid credentials", Bundle{Message: "Invalid credentials. Please check the email and password."}, KindInvalidCredentials},
		{"unauthorized status", Bundle{Message: "nope", HTTPStatus: http.StatusUnauthorized}, KindInvalidCredentials},
		{"unauthorized with profile mention", Bundle{Message: "unauthorized to read profile", HTTPStatus: 401}, KindUnknown},
		{"generic validation", Bundle{Message: "Dwolla error: state must be a two-letter code"}, KindValidation},
		{"upstream 503", Bundle{Message: "bad gateway", HTTPStatus: 503}, KindUpstreamUnavailable},
		{"upstream timeout", Bundle{Message: "context deadline exceeded"}, KindUpstreamUnavailable},
		{"default", Bundle{Message: "something odd"}, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.bundle)
			if got.Kind != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got.Kind)
			}
		})
	}
}

func TestClassify_StructuredStateValidation(t *testing.T) {
	body := map[string]any{
		"code":    "ValidationError",
		"message": "Validation error(s) present. See embedded errors list for more details.",
		"_embedded": map[string]any{
			"errors": []any{
				map[string]any{"code": "Invalid", "path": "/state", "message": "must be a US state"},
			},
		},
	}

	got := Classify(Bundle{Message: "Validation error(s) present.", HTTPStatus: 400, Body: body})
	if got.Kind != KindValidation {
		t.Fatalf("expected validation, got %s", got.Kind)
	}
	if got.Field != "state" || got.Detail != "must be a US state" {
		t.Fatalf("unexpected field/detail: %q / %q", got.Field, got.Detail)
	}
	if got.Error() != "validation error: state: must be a US state" {
		t.Fatalf("unexpected message: %q", got.Error())
	}
}

func TestClassify_StructuredValidationJoinsPairs(t *testing.T) {
	body := map[string]any{
		"_embedded": map[string]any{
			"errors": []any{
				map[string]any{"path": "/state", "message": "must be a US state"},
				map[string]any{"path": "/postalCode", "message": "is invalid"},
			},
		},
	}

	got := Classify(Bundle{Message: "ValidationError", Body: body})
	if got.Kind != KindValidation {
		t.Fatalf("expected validation, got %s", got.Kind)
	}
	want := "state: must be a US state, postalCode: is invalid"
	if got.Detail != want {
		t.Fatalf("expected %q, got %q", want, got.Detail)
	}
	if len(got.Fields) != 2 || got.Field != "state" {
		t.Fatalf("unexpected fields: %+v", got.Fields)
	}
}

func TestClassify_GenericValidationStripsPrefixes(t *testing.T) {
	got := Classify(Bundle{Message: "Dwolla error: Validation error: dateOfBirth is required"})
	if got.Kind != KindValidation {
		t.Fatalf("expected validation, got %s", got.Kind)
	}
	if got.Detail != "dateOfBirth is required" {
		t.Fatalf("unexpected detail %q", got.Detail)
	}
}

func TestClassify_UnknownKeepsOriginalMessage(t *testing.T) {
	got := Classify(Bundle{Message: "  gremlins  "})
	if got.Kind != KindUnknown || got.Detail != "gremlins" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestRuleNames_Order(t *testing.T) {
	want := []string{
		"profile_data_missing",
		"account_already_exists",
		"user_not_found",
		"invalid_credentials",
		"structured_validation",
		"generic_validation",
		"upstream_unavailable",
	}
	got := RuleNames()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected rule order: %v", got)
	}
}

func TestClassifyError_PassesThroughClassified(t *testing.T) {
	orig := Validation("state", "bad")
	wrapped := fmt.Errorf("register: %w", orig)
	if got := ClassifyError(wrapped); got != orig {
		t.Fatalf("expected classified error to pass through")
	}
}

func TestClassifyError_ProviderAndPgErrors(t *testing.T) {
	provider := &ProviderError{Provider: "dwolla", Bundle: Bundle{Message: "Service Unavailable", HTTPStatus: 503}}
	if got := ClassifyError(provider); got.Kind != KindUpstreamUnavailable {
		t.Fatalf("expected upstream, got %s", got.Kind)
	}

	pgErr := &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint \"principals_email_key\""}
	got := ClassifyError(fmt.Errorf("insert principal: %w", pgErr))
	if got.Kind != KindAccountAlreadyExists {
		t.Fatalf("expected already exists, got %s", got.Kind)
	}
	if !errors.Is(got, pgErr) {
		t.Fatalf("expected cause to be preserved")
	}

	if got := ClassifyError(context.DeadlineExceeded); got.Kind != KindUpstreamUnavailable {
		t.Fatalf("expected timeout to be upstream unavailable, got %s", got.Kind)
	}
}

func TestError_IsMatchesSentinelByKind(t *testing.T) {
	err := fmt.Errorf("sign in: %w", New(KindProfileDataMissing, errors.New("no rows")))
	if !errors.Is(err, ErrProfileDataMissing) {
		t.Fatalf("expected errors.Is to match by kind")
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected no match for a different kind")
	}
	if KindOf(err) != KindProfileDataMissing {
		t.Fatalf("unexpected KindOf result")
	}
}

func FuzzClassify_ProfileNeverInvalidCredentials(f *testing.F) {
	seeds := []string{
		"profile",
		"Unauthorized: profile",
		"invalid credentials for PROFILE",
		"user_invalid_credentials profile",
		"wrong password; profile lookup",
		"Profile: unauthorized",
	}
	for _, s := range seeds {
		f.Add(s, 401)
		f.Add(s, 0)
	}

	f.Fuzz(func(t *testing.T, msg string, status int) {
		if !strings.Contains(strings.ToLower(msg), "profile") {
			t.Skip()
		}
		got := Classify(Bundle{Message: msg, HTTPStatus: status})
		if got.Kind == KindInvalidCredentials {
			t.Fatalf("profile message %q classified as invalid credentials", msg)
		}
	})
}
