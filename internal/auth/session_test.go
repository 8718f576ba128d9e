package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIssueSession(t *testing.T) {
	t.Parallel()

	svc := NewSessionService(NewTokenService(testKeySet(t)))

	session, err := svc.IssueSession(context.Background(), "user-42")
	if err != nil {
		t.Fatalf("IssueSession error: %v", err)
	}

	if session.AccessToken == "" || session.RefreshToken == "" {
		t.Fatal("session must carry both tokens")
	}

	// Both tokens must verify under their own role and share the subject.
	tokens := NewTokenService(testKeySet(t))
	accessClaims, err := tokens.Verify(session.AccessToken, RoleAccess)
	if err != nil {
		t.Fatalf("access token did not verify: %v", err)
	}
	refreshClaims, err := tokens.Verify(session.RefreshToken, RoleRefresh)
	if err != nil {
		t.Fatalf("refresh token did not verify: %v", err)
	}
	if accessClaims.Subject != "user-42" || refreshClaims.Subject != "user-42" {
		t.Errorf("subjects diverge: access=%q refresh=%q", accessClaims.Subject, refreshClaims.Subject)
	}

	// Expiries are read back from the signed claims.
	if !session.AccessExpiry.Equal(accessClaims.Expiry) {
		t.Errorf("access expiry mismatch: session=%v claims=%v", session.AccessExpiry, accessClaims.Expiry)
	}
	if !session.RefreshExpiry.Equal(refreshClaims.Expiry) {
		t.Errorf("refresh expiry mismatch: session=%v claims=%v", session.RefreshExpiry, refreshClaims.Expiry)
	}
	if !session.RefreshExpiry.After(session.AccessExpiry) {
		t.Error("refresh token must outlive the access token")
	}
}

func TestIssueSessionCancelledContext(t *testing.T) {
	t.Parallel()

	svc := NewSessionService(NewTokenService(testKeySet(t)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session, err := svc.IssueSession(ctx, "user-42")
	if err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
	if session != nil {
		t.Error("no session may escape a cancelled issuance")
	}
}

func TestClientKindFromRequest(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("POST", "/auth/login", nil)
	if kind := ClientKindFromRequest(r); kind != ClientBrowser {
		t.Errorf("expected browser by default, got %q", kind)
	}

	r.Header.Set(ClientKindHeader, "native")
	if kind := ClientKindFromRequest(r); kind != ClientNative {
		t.Errorf("expected native, got %q", kind)
	}

	r.Header.Set(ClientKindHeader, "toaster")
	if kind := ClientKindFromRequest(r); kind != ClientBrowser {
		t.Errorf("unknown kinds must fall back to browser, got %q", kind)
	}
}

func TestWriteSessionBrowser(t *testing.T) {
	t.Parallel()

	session := &Session{
		Subject:       "u1",
		AccessToken:   "access.token.value",
		RefreshToken:  "refresh.token.value",
		AccessExpiry:  time.Now().Add(AccessTokenTTL).Truncate(time.Second),
		RefreshExpiry: time.Now().Add(RefreshTokenTTL).Truncate(time.Second),
	}

	w := httptest.NewRecorder()
	if err := WriteSession(w, session, ClientBrowser, http.StatusCreated); err != nil {
		t.Fatalf("WriteSession error: %v", err)
	}

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected status 201, got %d", resp.StatusCode)
	}

	cookies := resp.Cookies()
	if len(cookies) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(cookies))
	}
	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
	}

	accessCookie, ok := byName[AccessTokenCookie]
	if !ok {
		t.Fatal("missing accessToken cookie")
	}
	refreshCookie, ok := byName[RefreshTokenCookie]
	if !ok {
		t.Fatal("missing refreshToken cookie")
	}

	if accessCookie.Value != session.AccessToken {
		t.Errorf("access cookie value mismatch: %q", accessCookie.Value)
	}
	if refreshCookie.Value != session.RefreshToken {
		t.Errorf("refresh cookie value mismatch: %q", refreshCookie.Value)
	}
	for name, c := range byName {
		if !c.HttpOnly {
			t.Errorf("cookie %s must be HttpOnly", name)
		}
	}
	if !accessCookie.Expires.Equal(session.AccessExpiry.UTC().Truncate(time.Second)) {
		t.Errorf("access cookie expiry %v does not match token expiry %v", accessCookie.Expires, session.AccessExpiry)
	}
	if !refreshCookie.Expires.Equal(session.RefreshExpiry.UTC().Truncate(time.Second)) {
		t.Errorf("refresh cookie expiry %v does not match token expiry %v", refreshCookie.Expires, session.RefreshExpiry)
	}
}

func TestWriteSessionNative(t *testing.T) {
	t.Parallel()

	session := &Session{
		Subject:      "u1",
		AccessToken:  "access.token.value",
		RefreshToken: "refresh.token.value",
	}

	w := httptest.NewRecorder()
	if err := WriteSession(w, session, ClientNative, http.StatusCreated); err != nil {
		t.Fatalf("WriteSession error: %v", err)
	}

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected status 201, got %d", resp.StatusCode)
	}
	if len(resp.Cookies()) != 0 {
		t.Errorf("native delivery must not set cookies, got %d", len(resp.Cookies()))
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["accessToken"] != session.AccessToken {
		t.Errorf("body accessToken mismatch: %q", body["accessToken"])
	}
	if body["refreshToken"] != session.RefreshToken {
		t.Errorf("body refreshToken mismatch: %q", body["refreshToken"])
	}
}

func TestClearCookies(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	ClearCookies(w)

	resp := w.Result()
	defer resp.Body.Close()

	cookies := resp.Cookies()
	if len(cookies) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(cookies))
	}
	for _, c := range cookies {
		if c.Value != "" {
			t.Errorf("cookie %s must be cleared, got value %q", c.Name, c.Value)
		}
		if c.MaxAge >= 0 {
			t.Errorf("cookie %s must have negative MaxAge, got %d", c.Name, c.MaxAge)
		}
	}
}
