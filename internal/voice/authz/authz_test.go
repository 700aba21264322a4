package authz

import (
	"context"
	"testing"
)

func TestAllowAll_AlwaysAuthorises(t *testing.T) {
	var a AllowAll
	if err := a.Authorize(context.Background(), "anyone", "voice"); err != nil {
		t.Fatalf("AllowAll should never reject: %v", err)
	}
}

func TestAllowList_AuthorisesKnownSubjectsOnly(t *testing.T) {
	a := NewAllowList(":1.42", ":1.7")
	if err := a.Authorize(context.Background(), ":1.42", "voice"); err != nil {
		t.Fatalf("expected known subject to be authorised: %v", err)
	}
	if err := a.Authorize(context.Background(), ":1.99", "voice"); err == nil {
		t.Fatal("expected unknown subject to be rejected")
	}
}
