// ABOUTME: Tests for JWT token issuance and verification
// ABOUTME: Covers round trips, expiry, scope mismatch, and key resolution

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/greentic/messaging-gateway/internal/envelope"
)

var testScope = envelope.TenantCtx{Env: "prod", Tenant: "acme", Team: "support"}

func newTestService() *Service {
	return NewService([]byte("test-signing-key"), nil, 0)
}

func TestIssueAndVerify_UserToken(t *testing.T) {
	svc := newTestService()

	token, expiresAt, err := svc.Issue(SubjectUser, "user-123", testScope, "", 0)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if token == "" {
		t.Fatal("Issue() returned empty token")
	}
	if until := time.Until(expiresAt); until < 29*time.Minute || until > 31*time.Minute {
		t.Errorf("expiresAt %v not near default TTL", until)
	}

	claims, err := svc.Verify(token, SubjectUser, &testScope)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Subject != "user-123" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "user-123")
	}
	if claims.Scope != testScope {
		t.Errorf("Scope = %+v, want %+v", claims.Scope, testScope)
	}
	if claims.Conversation != "" {
		t.Errorf("Conversation = %q, want empty on user token", claims.Conversation)
	}
}

func TestIssueAndVerify_ConversationToken(t *testing.T) {
	svc := newTestService()

	token, _, err := svc.Issue(SubjectConversation, "conv-1", testScope, "conv-1", 0)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := svc.Verify(token, SubjectConversation, nil)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Conversation != "conv-1" {
		t.Errorf("Conversation = %q, want %q", claims.Conversation, "conv-1")
	}
}

func TestVerify_Expired(t *testing.T) {
	svc := newTestService()

	token, _, err := svc.Issue(SubjectUser, "user-123", testScope, "", time.Millisecond)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	_, err = svc.Verify(token, SubjectUser, nil)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}

func TestVerify_ScopeMismatch(t *testing.T) {
	svc := newTestService()

	scopeX := envelope.TenantCtx{Env: "prod", Tenant: "acme", Team: "x"}
	scopeY := envelope.TenantCtx{Env: "prod", Tenant: "acme", Team: "y"}

	token, _, err := svc.Issue(SubjectUser, "user-123", scopeX, "", 0)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	_, err = svc.Verify(token, SubjectUser, &scopeY)
	if !errors.Is(err, ErrScopeMismatch) {
		t.Errorf("Verify() error = %v, want ErrScopeMismatch", err)
	}
}

func TestVerify_WrongSubjectKind(t *testing.T) {
	svc := newTestService()

	token, _, err := svc.Issue(SubjectUser, "user-123", testScope, "", 0)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	_, err = svc.Verify(token, SubjectConversation, nil)
	if !errors.Is(err, ErrWrongSubject) {
		t.Errorf("Verify() error = %v, want ErrWrongSubject", err)
	}
}

func TestVerify_BadSignature(t *testing.T) {
	svc := newTestService()
	other := NewService([]byte("a-different-key"), nil, 0)

	token, _, err := other.Issue(SubjectUser, "user-123", testScope, "", 0)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	_, err = svc.Verify(token, SubjectUser, nil)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestVerify_Garbage(t *testing.T) {
	svc := newTestService()

	_, err := svc.Verify("not-a-jwt", SubjectUser, nil)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestIssue_TenantKeySelection(t *testing.T) {
	tenantKeys := map[string][]byte{
		"prod:acme": []byte("acme-only-key"),
	}
	svc := NewService([]byte("default-key"), tenantKeys, 0)

	// Scope with a dedicated key verifies against a service holding only
	// that key.
	token, _, err := svc.Issue(SubjectUser, "u", testScope, "", 0)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	acmeOnly := NewService(nil, tenantKeys, 0)
	if _, err := acmeOnly.Verify(token, SubjectUser, nil); err != nil {
		t.Errorf("Verify() with tenant key error = %v", err)
	}

	// A scope without a dedicated key falls back to the default.
	otherScope := envelope.TenantCtx{Env: "prod", Tenant: "globex"}
	token2, _, err := svc.Issue(SubjectUser, "u", otherScope, "", 0)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	defaultOnly := NewService([]byte("default-key"), nil, 0)
	if _, err := defaultOnly.Verify(token2, SubjectUser, nil); err != nil {
		t.Errorf("Verify() with default key error = %v", err)
	}
}

func TestIssue_MissingKey(t *testing.T) {
	svc := NewService(nil, nil, 0)

	_, _, err := svc.Issue(SubjectUser, "u", testScope, "", 0)
	if !errors.Is(err, ErrMissingKey) {
		t.Errorf("Issue() error = %v, want ErrMissingKey", err)
	}
}
