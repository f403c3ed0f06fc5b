package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"kinship/apperr"
	"kinship/models"
	"kinship/validation"
)

type RegisterInput struct {
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
	Password2 string `json:"password2" validate:"required,eqfield=Password"`
}

const maxPasswordBytes = 72

var registerMessages = validation.Messages{
	"name.required":      "Name is required.",
	"email.required":     "Email is required.",
	"email.email":        "Please enter a valid email.",
	"password.required":  "Password is required.",
	"password.min":       "Password must be at least 6 characters long.",
	"password.max":       "Password must not exceed 72 characters.",
	"password2.required": "Confirm password is required.",
	"password2.eqfield":  "Passwords do not match.",
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

var loginMessages = validation.Messages{
	"email.required":    "Email is required.",
	"email.email":       "Please enter a valid email.",
	"password.required": "Password is required.",
}

// Session is what a successful sign-in returns. Token already carries the
// "Bearer " prefix.
type Session struct {
	Success   bool               `json:"success"`
	Token     string             `json:"token"`
	ExpiresIn int64              `json:"expiresIn"`
	User      models.UserSummary `json:"user"`
}

type Accounts struct {
	users  UserStore
	hasher PasswordHasher
	tokens TokenIssuer
	ttl    time.Duration
	log    *zap.Logger
}

func NewAccounts(d Deps, ttl time.Duration) *Accounts {
	return &Accounts{
		users:  d.Users,
		hasher: d.Hasher,
		tokens: d.Tokens,
		ttl:    ttl,
		log:    ensureLogger(d.Log).Named("accounts"),
	}
}

func (a *Accounts) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(in, registerMessages); err != nil {
		return nil, err
	}
	// max counts runes; bcrypt limits bytes
	if len(in.Password) > maxPasswordBytes {
		return nil, apperr.Field("password", registerMessages["password.max"])
	}

	if _, err := a.users.FindByEmail(ctx, in.Email); err == nil {
		return nil, apperr.Conflict("email", "Email already exists")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, storeErr("find user by email", err)
	}

	hashed, err := a.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	ts := now()
	user := &models.User{
		ID:           primitive.NewObjectID(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: &hashed,
		AuthProvider: models.ProviderEmail,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	if err := a.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, apperr.Conflict("email", "Email already exists")
		}
		return nil, storeErr("create user", err)
	}

	a.log.Info("user registered", zap.String("userId", user.ID.Hex()))
	return user, nil
}

func (a *Accounts) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(in, loginMessages); err != nil {
		return nil, err
	}

	user, err := a.users.FindByEmail(ctx, in.Email)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.Field("email", "User not found")
	}
	if err != nil {
		return nil, storeErr("find user by email", err)
	}

	if user.PasswordHash == nil {
		return nil, apperr.Field("password", "This account signs in with Google")
	}
	if err := a.hasher.Compare(*user.PasswordHash, in.Password); err != nil {
		return nil, apperr.Field("password", "Password incorrect")
	}

	return a.session(user)
}

// Current returns the principal's public identity.
func (a *Accounts) Current(ctx context.Context, id primitive.ObjectID) (*models.UserSummary, error) {
	user, err := a.users.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.Unauthorized("Unauthorized")
	}
	if err != nil {
		return nil, storeErr("find user", err)
	}
	summary := user.Summary()
	return &summary, nil
}

// SignInExternal finds the user behind a verified external identity by email,
// creating it on first sign-in, and opens a session.
func (a *Accounts) SignInExternal(ctx context.Context, identity *models.ExternalIdentity) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if email == "" {
		return nil, apperr.Field("email", "Email is required.")
	}

	user, err := a.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if user.GoogleID == nil && identity.Subject != "" {
			if err := a.users.LinkGoogle(ctx, user.ID, identity.Subject); err != nil {
				return nil, storeErr("link google account", err)
			}
			subject := identity.Subject
			user.GoogleID = &subject
		}
	case errors.Is(err, ErrNotFound):
		name := strings.TrimSpace(identity.Name)
		if name == "" {
			name = strings.SplitN(email, "@", 2)[0]
		}
		subject := identity.Subject
		ts := now()
		user = &models.User{
			ID:           primitive.NewObjectID(),
			Name:         name,
			Email:        email,
			AuthProvider: identity.Provider,
			GoogleID:     &subject,
			CreatedAt:    ts,
			UpdatedAt:    ts,
		}
		if err := a.users.Create(ctx, user); err != nil {
			return nil, storeErr("create user", err)
		}
		a.log.Info("user registered via external identity",
			zap.String("userId", user.ID.Hex()),
			zap.String("provider", identity.Provider))
	default:
		return nil, storeErr("find user by email", err)
	}

	return a.session(user)
}

func (a *Accounts) session(user *models.User) (*Session, error) {
	token, err := a.tokens.Issue(user)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &Session{
		Success:   true,
		Token:     "Bearer " + token,
		ExpiresIn: int64(a.ttl / time.Second),
		User:      user.Summary(),
	}, nil
}
