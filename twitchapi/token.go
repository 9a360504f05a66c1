// Package twitchapi contains minimal helpers to interact with Twitch: an
// app access (client credentials) token source and a Helix stream-live
// probe. The app token cannot be used for IRC chat; chat requires the bot's
// user OAuth token.
package twitchapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const tokenURL = "https://id.twitch.tv/oauth2/token"

// TokenSource fetches and caches a Twitch app access token via the client
// credentials grant. Caching and expiry handling come from the oauth2
// reuse source; Get only hits the network when the cached token is stale.
type TokenSource struct {
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client

	once sync.Once
	src  oauth2.TokenSource
}

// Get returns a valid (fresh or cached) app access token.
func (ts *TokenSource) Get(ctx context.Context) (string, error) {
	ts.once.Do(func() {
		conf := &clientcredentials.Config{
			ClientID:     ts.ClientID,
			ClientSecret: ts.ClientSecret,
			TokenURL:     tokenURL,
		}
		// Token refreshes happen lazily from whichever caller finds the
		// cached token expired, so they get their own bounded context
		// rather than the first caller's.
		tctx := context.Background()
		if ts.HTTPClient != nil {
			tctx = context.WithValue(tctx, oauth2.HTTPClient, ts.HTTPClient)
		} else {
			tctx = context.WithValue(tctx, oauth2.HTTPClient, &http.Client{Timeout: 10 * time.Second})
		}
		ts.src = oauth2.ReuseTokenSource(nil, conf.TokenSource(tctx))
	})
	tok, err := ts.src.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}
