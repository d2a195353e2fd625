package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/avellora/caresync/internal/models"
)

// ErrNotAuthenticated is returned when a token or identity is requested
// before a successful sign-in.
var ErrNotAuthenticated = errors.New("auth: not signed in")

// ClientOpts configures a Client.
type ClientOpts struct {
	// TokenURL is the OAuth2 token endpoint of the identity provider.
	TokenURL string
	// ClientID identifies this application to the provider.
	ClientID string
	// DB receives the signed-in profile. Optional.
	DB *gorm.DB
	// HTTPClient overrides the client used for token requests. Optional.
	HTTPClient *http.Client
}

// Client signs users in against an OAuth2 password-grant endpoint and
// hands out bearer tokens for channel calls. Tokens refresh transparently
// through the underlying token source.
type Client struct {
	cfg  *oauth2.Config
	db   *gorm.DB
	http *http.Client

	mu      sync.Mutex
	source  oauth2.TokenSource
	profile *models.Profile
}

// NewClient creates a Client.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.TokenURL == "" {
		return nil, fmt.Errorf("auth: token URL is required")
	}
	if opts.ClientID == "" {
		return nil, fmt.Errorf("auth: client ID is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		cfg: &oauth2.Config{
			ClientID: opts.ClientID,
			Endpoint: oauth2.Endpoint{TokenURL: opts.TokenURL},
		},
		db:   opts.DB,
		http: httpClient,
	}, nil
}

// SignIn exchanges credentials for a token and records the user's profile.
// The provider is expected to return user_id, display_name and role
// alongside the token; missing fields fall back to the username.
func (c *Client) SignIn(ctx context.Context, username, password string) (*models.Profile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("auth: username is required")
	}
	if password == "" {
		return nil, fmt.Errorf("auth: password is required")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := c.cfg.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("auth: sign in %s: %w", username, err)
	}

	profile := profileFromToken(tok, username)
	if c.db != nil {
		if err := SaveProfile(c.db, profile); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	c.source = c.cfg.TokenSource(context.WithValue(context.Background(), oauth2.HTTPClient, c.http), tok)
	c.profile = profile
	c.mu.Unlock()
	return profile, nil
}

// SignOut discards the token and profile.
func (c *Client) SignOut() {
	c.mu.Lock()
	c.source = nil
	c.profile = nil
	c.mu.Unlock()
}

// Token returns the current access token, refreshing it when expired.
// It returns ErrNotAuthenticated before sign-in.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	source := c.source
	c.mu.Unlock()
	if source == nil {
		return "", ErrNotAuthenticated
	}
	tok, err := source.Token()
	if err != nil {
		return "", fmt.Errorf("auth: token: %w", err)
	}
	return tok.AccessToken, nil
}

// Identity returns the signed-in user's ID and display name. It returns
// ErrNotAuthenticated before sign-in.
func (c *Client) Identity(ctx context.Context) (string, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profile == nil {
		return "", "", ErrNotAuthenticated
	}
	return c.profile.UserID, c.profile.DisplayName, nil
}

// Profile returns the signed-in profile, nil before sign-in.
func (c *Client) Profile() *models.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

func profileFromToken(tok *oauth2.Token, username string) *models.Profile {
	p := &models.Profile{
		UserID:      username,
		DisplayName: username,
		Role:        models.RolePatient,
	}
	if v, ok := tok.Extra("user_id").(string); ok && v != "" {
		p.UserID = v
	}
	if v, ok := tok.Extra("display_name").(string); ok && v != "" {
		p.DisplayName = v
	}
	if v, ok := tok.Extra("email").(string); ok && v != "" {
		p.Email = v
	}
	if v, ok := tok.Extra("role").(string); ok && v != "" {
		p.Role = v
	}
	return p
}

// SaveProfile upserts a profile keyed by user ID.
func SaveProfile(db *gorm.DB, p *models.Profile) error {
	if p.UserID == "" {
		return fmt.Errorf("auth: profile user ID is required")
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(p).Error; err != nil {
		return fmt.Errorf("auth: save profile %s: %w", p.UserID, err)
	}
	return nil
}

// LastProfile returns the most recently saved profile, ErrNotAuthenticated
// when none exists. It lets the CLI pick up an identity across runs.
func LastProfile(db *gorm.DB) (*models.Profile, error) {
	var p models.Profile
	err := db.Order("updated_at DESC").First(&p).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("auth: load profile: %w", err)
	}
	return &p, nil
}

// Static is a fixed identity for local development and tests.
type Static struct {
	UserID      string
	DisplayName string
}

// Identity returns the fixed identity.
func (s Static) Identity(ctx context.Context) (string, string, error) {
	if s.UserID == "" {
		return "", "", ErrNotAuthenticated
	}
	return s.UserID, s.DisplayName, nil
}
