package plaidclient

import (
	"testing"

	"github.com/plaid/plaid-go/v20/plaid"

	"fundlink/internal/apperr"
)

func TestBundleFromBody_ReadsPlaidErrorFields(t *testing.T) {
	raw := []byte(`{"error_type":"ITEM_ERROR","error_code":"ITEM_LOGIN_REQUIRED","error_message":"the login details of this item have changed"}`)

	b := bundleFromBody(raw, apperr.Bundle{Message: "400 Bad Request", HTTPStatus: 400})
	if b.Code != "ITEM_LOGIN_REQUIRED" {
		t.Fatalf("expected error code, got %q", b.Code)
	}
	if b.Message != "the login details of this item have changed" {
		t.Fatalf("unexpected message %q", b.Message)
	}
	if b.HTTPStatus != 400 || b.Body["error_type"] != "ITEM_ERROR" {
		t.Fatalf("expected status and body to be kept: %+v", b)
	}
}

func TestBundleFromBody_InvalidJSONKeepsBundle(t *testing.T) {
	in := apperr.Bundle{Message: "boom", HTTPStatus: 500}
	b := bundleFromBody([]byte("not json"), in)
	if b.Message != "boom" || b.Body != nil || b.Code != "" {
		t.Fatalf("expected unchanged bundle, got %+v", b)
	}
}

func TestCountryCodes_DefaultsToUS(t *testing.T) {
	got := countryCodes([]string{" ", ""})
	if len(got) != 1 || got[0] != plaid.COUNTRYCODE_US {
		t.Fatalf("expected US default, got %v", got)
	}

	got = countryCodes([]string{"us", " ca "})
	if len(got) != 2 || got[0] != plaid.CountryCode("US") || got[1] != plaid.CountryCode("CA") {
		t.Fatalf("unexpected codes %v", got)
	}
}

func TestEnvironment(t *testing.T) {
	if environment("Production") != plaid.Production {
		t.Fatalf("expected production")
	}
	if environment("") != plaid.Sandbox {
		t.Fatalf("expected sandbox default")
	}
}
