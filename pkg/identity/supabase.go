package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// SupabaseProvider implements Provider against the Supabase GoTrue
// REST API (/auth/v1).
type SupabaseProvider struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client

	mu        sync.Mutex
	current   *RawSession
	listeners map[int]ChangeFunc
	nextID    int
}

// NewSupabaseProvider 创建Supabase身份验证提供者
func NewSupabaseProvider(supabaseURL, anonKey string) *SupabaseProvider {
	if !strings.HasPrefix(supabaseURL, "http") {
		supabaseURL = "https://" + supabaseURL
	}
	return &SupabaseProvider{
		baseURL:    strings.TrimRight(supabaseURL, "/"),
		anonKey:    anonKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		listeners:  make(map[int]ChangeFunc),
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (p *SupabaseProvider) authRequest(ctx context.Context, method, endpoint, bearer string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+"/auth/v1"+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("apikey", p.anonKey)
	req.Header.Set("Content-Type", "application/json")
	if bearer == "" {
		bearer = p.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("auth request failed with status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// SignInWithPassword exchanges email+password for a session via the
// password grant.
func (p *SupabaseProvider) SignInWithPassword(ctx context.Context, email, password string) (*RawSession, error) {
	payload := map[string]string{"email": email, "password": password}
	respBody, err := p.authRequest(ctx, "POST", "/token?grant_type=password", "", payload)
	if err != nil {
		return nil, fmt.Errorf("sign in failed: %w", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	session := &RawSession{
		UserID:       tr.User.ID,
		Email:        tr.User.Email,
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}

	p.setSession(session)
	return session, nil
}

// SignOut revokes the current session upstream and clears it locally.
// The local state is cleared even when revocation fails, so a broken
// network cannot pin a user to a signed-in state.
func (p *SupabaseProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()

	var revokeErr error
	if current != nil {
		_, revokeErr = p.authRequest(ctx, "POST", "/logout", current.AccessToken, nil)
	}

	p.setSession(nil)
	if revokeErr != nil {
		return fmt.Errorf("failed to revoke session: %w", revokeErr)
	}
	return nil
}

// CurrentSession returns the locally tracked session. An expired
// session is treated as absent.
func (p *SupabaseProvider) CurrentSession(ctx context.Context) (*RawSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return nil, nil
	}
	if time.Now().After(p.current.ExpiresAt) {
		return nil, nil
	}
	cp := *p.current
	return &cp, nil
}

// OnSessionChange registers fn and returns its unsubscribe function.
func (p *SupabaseProvider) OnSessionChange(fn ChangeFunc) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// setSession swaps the tracked session and notifies listeners in order.
// Notification happens under the lock so transitions are serialized.
func (p *SupabaseProvider) setSession(session *RawSession) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = session

	ids := make([]int, 0, len(p.listeners))
	for id := range p.listeners {
		ids = append(ids, id)
	}
	// map iteration order is random; deliver in registration order
	sort.Ints(ids)
	for _, id := range ids {
		p.listeners[id](session)
	}
}
