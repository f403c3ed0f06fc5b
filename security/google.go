package security

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"

	"kinship/models"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var ErrGoogleDisabled = errors.New("google sign-in is not configured")

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Google resolves Google accounts either through the OAuth code flow or from
// a Google Identity Services credential.
type Google struct {
	oauth    *oauth2.Config
	clientID string
	validate func(ctx context.Context, credential, audience string) (*idtoken.Payload, error)
}

// NewGoogle returns nil when no client id is configured.
func NewGoogle(clientID, clientSecret, redirectURL string) *Google {
	if clientID == "" {
		return nil
	}
	return &Google{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		clientID: clientID,
		validate: idtoken.Validate,
	}
}

func (g *Google) AuthURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for the account behind it.
func (g *Google) Exchange(ctx context.Context, code string) (*models.ExternalIdentity, error) {
	if g == nil || g.oauth.ClientSecret == "" {
		return nil, ErrGoogleDisabled
	}
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleUserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch user info: status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	if !info.VerifiedEmail {
		return nil, errors.New("google email is not verified")
	}
	return &models.ExternalIdentity{
		Provider: models.ProviderGoogle,
		Subject:  info.ID,
		Email:    info.Email,
		Name:     info.Name,
		Picture:  info.Picture,
	}, nil
}

// VerifyCredential checks the signature and audience of a GIS ID token.
func (g *Google) VerifyCredential(ctx context.Context, credential string) (*models.ExternalIdentity, error) {
	if g == nil {
		return nil, ErrGoogleDisabled
	}
	payload, err := g.validate(ctx, credential, g.clientID)
	if err != nil {
		return nil, fmt.Errorf("validate credential: %w", err)
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return nil, errors.New("credential has no email")
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		return nil, errors.New("google email is not verified")
	}
	name, _ := payload.Claims["name"].(string)
	picture, _ := payload.Claims["picture"].(string)

	return &models.ExternalIdentity{
		Provider: models.ProviderGoogle,
		Subject:  payload.Subject,
		Email:    email,
		Name:     name,
		Picture:  picture,
	}, nil
}
