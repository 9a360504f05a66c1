package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

const defaultHelixURL = "https://api.twitch.tv/helix"

// HelixClient provides the single Helix call the bot needs: whether the
// configured channel is currently live. It backs the session manager's
// pluggable liveness gate when LIVE_CHECK is enabled.
type HelixClient struct {
	AppTokenSource *TokenSource
	ClientID       string
	BaseURL        string
	HTTPClient     *http.Client
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) base() string {
	if hc.BaseURL != "" {
		return hc.BaseURL
	}
	return defaultHelixURL
}

// IsLive reports whether the channel has an active stream.
func (hc *HelixClient) IsLive(ctx context.Context, channel string) (bool, error) {
	if channel == "" {
		return false, fmt.Errorf("channel empty")
	}
	tok, err := hc.AppTokenSource.Get(ctx)
	if err != nil {
		return false, err
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, hc.base()+"/streams", nil)
	q := req.URL.Query()
	q.Set("user_login", channel)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := hc.http().Do(req)
	if err != nil {
		return false, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("helix streams: %s", resp.Status)
	}
	var body struct {
		Data []struct {
			Type string `json:"type"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, err
	}
	return len(body.Data) > 0, nil
}
