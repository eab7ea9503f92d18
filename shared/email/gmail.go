package email

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"weather-agent/internal/models"
	"weather-agent/shared/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// ErrNoGmailToken means no usable token was found in the token file
var ErrNoGmailToken = errors.New("no usable gmail token")

type rawSender func(ctx context.Context, raw string) error

// GmailDispatcher sends notifications through the Gmail API as the authorized user
type GmailDispatcher struct {
	to   string
	send rawSender
}

// NewGmailDispatcher loads the stored token and builds an auto-refreshing Gmail client.
// The token file must already hold a refresh token for the gmail.send scope.
func NewGmailDispatcher(ctx context.Context, cfg config.GmailConfig, logger *slog.Logger) (*GmailDispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmail.GmailSendScope},
		Endpoint:     google.Endpoint,
	}

	token, err := loadToken(cfg.TokenFile)
	if err != nil {
		return nil, err
	}

	ts := &tokenSaver{
		config:    oauthConfig,
		token:     token,
		tokenFile: cfg.TokenFile,
		logger:    logger.With("component", "gmail"),
	}

	httpClient := oauth2.NewClient(ctx, ts)
	service, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return newGmailDispatcher(cfg.ToEmail, func(ctx context.Context, raw string) error {
		_, err := service.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
		return err
	}), nil
}

func newGmailDispatcher(to string, send rawSender) *GmailDispatcher {
	return &GmailDispatcher{to: to, send: send}
}

func (d *GmailDispatcher) Dispatch(ctx context.Context, n models.Notification) error {
	body, err := RenderHTML(n)
	if err != nil {
		return err
	}

	msg := buildMessage("", d.to, Subject(n), body)
	raw := base64.URLEncoding.EncodeToString(msg)
	if err := d.send(ctx, raw); err != nil {
		return fmt.Errorf("failed to send gmail message: %w", err)
	}
	return nil
}

// tokenSaver wraps an oauth2 token source and persists refreshed tokens,
// so a refresh survives restarts.
type tokenSaver struct {
	config    *oauth2.Config
	token     *oauth2.Token
	tokenFile string
	logger    *slog.Logger
	mu        sync.Mutex
}

func (ts *tokenSaver) Token() (*oauth2.Token, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	newToken, err := ts.config.TokenSource(context.Background(), ts.token).Token()
	if err != nil {
		return nil, err
	}

	if newToken.AccessToken != ts.token.AccessToken {
		ts.logger.Info("gmail token refreshed, saving to file", "path", ts.tokenFile)
		ts.token = newToken
		if err := saveToken(ts.tokenFile, newToken); err != nil {
			ts.logger.Warn("failed to save refreshed token", "error", err)
		}
	}

	return newToken, nil
}

// loadToken keeps expired tokens that carry a refresh token
func loadToken(tokenFile string) (*oauth2.Token, error) {
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoGmailToken, err)
	}
	if tok.RefreshToken == "" && !tok.Valid() {
		return nil, fmt.Errorf("%w: token in %s is expired and has no refresh token", ErrNoGmailToken, tokenFile)
	}
	return tok, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("unable to create token directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode oauth token: %w", err)
	}
	return nil
}
