package token

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := New("test-signing-key", "escala-test")

	in := Claims{
		UID:       "u1",
		CompanyID: "acme",
		Email:     "ana@acme.com",
		Name:      "Ana",
		Role:      "collaborator",
		Level:     10,
	}

	tok, err := svc.Generate(in, time.Hour)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	out, err := svc.Validate(tok)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if out.UID != "u1" || out.CompanyID != "acme" || out.Level != 10 || out.Role != "collaborator" {
		t.Errorf("claims = %+v", out)
	}
	if out.Issuer != "escala-test" || out.Subject != "u1" {
		t.Errorf("registered claims = %+v", out.RegisteredClaims)
	}
}

func TestValidate_RejectsWrongKey(t *testing.T) {
	tok, err := New("key-one", "escala").Generate(Claims{UID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if _, err := New("key-two", "escala").Validate(tok); err == nil {
		t.Error("token signed with another key must not validate")
	}
}

func TestValidate_RejectsWrongIssuer(t *testing.T) {
	tok, err := New("shared-key", "other-service").Generate(Claims{UID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if _, err := New("shared-key", "escala").Validate(tok); err == nil {
		t.Error("token minted by another issuer must not validate")
	}
}

func TestValidate_RejectsExpired(t *testing.T) {
	svc := New("test-signing-key", "escala")

	tok, err := svc.Generate(Claims{UID: "u1"}, -time.Minute)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if _, err := svc.Validate(tok); err == nil {
		t.Error("expired token must not validate")
	}
}

func TestGenerateSigningKey(t *testing.T) {
	k1, err := GenerateSigningKey()
	if err != nil {
		t.Fatalf("GenerateSigningKey: %v", err)
	}
	k2, _ := GenerateSigningKey()

	if len(k1) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(k1))
	}
	if strings.EqualFold(k1, k2) {
		t.Error("two generated keys should differ")
	}
}
