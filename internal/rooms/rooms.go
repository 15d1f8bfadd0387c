package rooms

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"time"
)

// Credentials identify a private game lobby.
type Credentials struct {
	RoomID   string `json:"room_id"`
	Password string `json:"password"`
}

// Provider hands out lobby credentials when a match goes live.
type Provider interface {
	Credentials(ctx context.Context, matchID string) (Credentials, error)
}

// HTTPProvider fetches credentials from an external room allocation service.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *HTTPProvider) Credentials(ctx context.Context, matchID string) (Credentials, error) {
	endpoint := fmt.Sprintf("%s/rooms?match_id=%s", p.baseURL, url.QueryEscape(matchID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return Credentials{}, fmt.Errorf("build room request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return Credentials{}, fmt.Errorf("room service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Credentials{}, fmt.Errorf("room service: unexpected status %d", resp.StatusCode)
	}
	var creds Credentials
	if err := json.NewDecoder(resp.Body).Decode(&creds); err != nil {
		return Credentials{}, fmt.Errorf("decode room response: %w", err)
	}
	if creds.RoomID == "" {
		return Credentials{}, fmt.Errorf("room service: empty room id")
	}
	return creds, nil
}

// LocalProvider generates random lobby codes. Used when no external room
// service is configured; admins then relay the codes into the game client.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (p *LocalProvider) Credentials(ctx context.Context, matchID string) (Credentials, error) {
	roomID, err := randomDigits(8)
	if err != nil {
		return Credentials{}, err
	}
	password, err := randomDigits(6)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{RoomID: roomID, Password: password}, nil
}

func randomDigits(n int) (string, error) {
	digits := make([]byte, n)
	for i := range digits {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		digits[i] = byte('0' + v.Int64())
	}
	return string(digits), nil
}

// NewProvider picks the HTTP provider when a base URL is configured and the
// local generator otherwise.
func NewProvider(baseURL string) Provider {
	if baseURL == "" {
		return NewLocalProvider()
	}
	return NewHTTPProvider(baseURL)
}
