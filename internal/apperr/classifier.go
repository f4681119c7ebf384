package apperr

import (
	"net/http"
	"strings"
)

// rule es una entrada de la lista de prioridad del clasificador. La primera
// regla que devuelve un error gana.
type rule struct {
	name  string
	apply func(in classifyInput) *Error
}

type classifyInput struct {
	raw        string
	lower      string
	status     int
	body       map[string]any
	hasProfile bool
}

var (
	profileMissingMarkers = []string{
		"profile data missing",
		"profile data is missing",
		"profile missing",
		"missing profile",
		"profile not found",
		"profile does not exist",
		"no profile",
	}
	alreadyExistsMarkers = []string{
		"already exists",
		"already registered",
		"already in use",
		"duplicate",
		"user_already_exists",
	}
	userNotFoundMarkers = []string{
		"user not found",
		"user_not_found",
		"user does not exist",
		"user could not be found",
		"no account found",
	}
	invalidCredentialMarkers = []string{
		"invalid credentials",
		"invalid email or password",
		"invalid password",
		"incorrect password",
		"wrong password",
		"user_invalid_credentials",
		"unauthorized",
	}
	validationMarkers = []string{
		"validation",
		"dwolla",
	}
	upstreamMarkers = []string{
		"timeout",
		"timed out",
		"deadline exceeded",
		"connection refused",
		"connection reset",
		"no such host",
		"service unavailable",
		"unexpected eof",
		"invalid_client",
		"misconfigured",
	}
	// Prefijos que se eliminan antes de devolver un mensaje de validación genérico.
	knownPrefixes = []string{
		"dwolla error:",
		"dwolla:",
		"validation error:",
		"validationerror:",
		"validation error(s) present.",
		"error:",
	}
)

var rules = []rule{
	{name: "profile_data_missing", apply: matchProfileMissing},
	{name: "account_already_exists", apply: matchAlreadyExists},
	{name: "user_not_found", apply: matchUserNotFound},
	{name: "invalid_credentials", apply: matchInvalidCredentials},
	{name: "structured_validation", apply: matchStructuredValidation},
	{name: "generic_validation", apply: matchGenericValidation},
	{name: "upstream_unavailable", apply: matchUpstream},
}

// Classify traduce un Bundle crudo al Kind interno. Es una función pura.
func Classify(b Bundle) *Error {
	in := classifyInput{
		raw:    strings.TrimSpace(b.Message),
		lower:  strings.ToLower(b.Message),
		status: b.HTTPStatus,
		body:   b.Body,
	}
	in.hasProfile = strings.Contains(in.lower, "profile")

	for _, r := range rules {
		if e := r.apply(in); e != nil {
			return e
		}
	}
	return &Error{Kind: KindUnknown, Detail: in.raw}
}

// RuleNames devuelve el orden de evaluación de las reglas.
func RuleNames() []string {
	names := make([]string, 0, len(rules))
	for _, r := range rules {
		names = append(names, r.name)
	}
	return names
}

func matchProfileMissing(in classifyInput) *Error {
	if containsAny(in.lower, profileMissingMarkers) {
		return &Error{Kind: KindProfileDataMissing}
	}
	return nil
}

func matchAlreadyExists(in classifyInput) *Error {
	if containsAny(in.lower, alreadyExistsMarkers) || in.status == http.StatusConflict {
		return &Error{Kind: KindAccountAlreadyExists}
	}
	return nil
}

func matchUserNotFound(in classifyInput) *Error {
	if containsAny(in.lower, userNotFoundMarkers) {
		return &Error{Kind: KindUserNotFound}
	}
	return nil
}

// Una mención a "profile" nunca debe quedar oculta tras un error de credenciales.
func matchInvalidCredentials(in classifyInput) *Error {
	if in.hasProfile {
		return nil
	}
	if containsAny(in.lower, invalidCredentialMarkers) || in.status == http.StatusUnauthorized {
		return &Error{Kind: KindInvalidCredentials}
	}
	return nil
}

func matchStructuredValidation(in classifyInput) *Error {
	fields := embeddedFieldErrors(in.body)
	if len(fields) == 0 {
		return nil
	}
	e := &Error{Kind: KindValidation, Fields: fields, Field: fields[0].Field}
	if len(fields) == 1 {
		e.Detail = fields[0].Message
		return e
	}
	pairs := make([]string, 0, len(fields))
	for _, f := range fields {
		pairs = append(pairs, f.Field+": "+f.Message)
	}
	e.Detail = strings.Join(pairs, ", ")
	return e
}

func matchGenericValidation(in classifyInput) *Error {
	if !containsAny(in.lower, validationMarkers) {
		return nil
	}
	return &Error{Kind: KindValidation, Detail: stripKnownPrefixes(in.raw)}
}

func matchUpstream(in classifyInput) *Error {
	if in.status >= http.StatusInternalServerError || containsAny(in.lower, upstreamMarkers) {
		return &Error{Kind: KindUpstreamUnavailable, Detail: in.raw}
	}
	return nil
}

// embeddedFieldErrors lee {"_embedded":{"errors":[{"path":"/state","message":"..."}]}}.
func embeddedFieldErrors(body map[string]any) []FieldError {
	if body == nil {
		return nil
	}
	embedded, ok := body["_embedded"].(map[string]any)
	if !ok {
		return nil
	}
	list, ok := embedded["errors"].([]any)
	if !ok {
		return nil
	}

	fields := make([]FieldError, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		path, _ := entry["path"].(string)
		msg, _ := entry["message"].(string)
		field := strings.TrimPrefix(strings.TrimSpace(path), "/")
		field = strings.ReplaceAll(field, "/", ".")
		if field == "" && msg == "" {
			continue
		}
		fields = append(fields, FieldError{Field: field, Message: strings.TrimSpace(msg)})
	}
	return fields
}

func stripKnownPrefixes(msg string) string {
	out := strings.TrimSpace(msg)
	for stripped := true; stripped; {
		stripped = false
		for _, p := range knownPrefixes {
			if len(out) >= len(p) && strings.EqualFold(out[:len(p)], p) {
				out = strings.TrimSpace(out[len(p):])
				stripped = true
				break
			}
		}
	}
	return out
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
