package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/CodedInternet/carnode/onboard"
	"github.com/asdine/storm/v3"
	"github.com/dgrijalva/jwt-go"
	"github.com/go-chi/render"
	"golang.org/x/crypto/bcrypt"
)

const (
	ADMIN_USER = "admin"
)

var (
	JWT_LIFESPAN time.Duration = time.Hour

	ErrUnprovisioned = errors.New("admin credential has not been set")
	ErrBadPassword   = errors.New("Invalid password")
	JWTEmpty         = errors.New("Bearer token not provided")
)

//---
// Structs
//---

// Represents a local user, kept in the storm database
type User struct {
	ID       int    `storm:"increment"` // pk
	Email    string `storm:"unique"`
	Name     string
	Password string
	Admin    bool
}

// Sets the User.Password to the hashed value for the provided plain text
func (u *User) SetPassword(pass []byte) {
	hash, _ := bcrypt.GenerateFromPassword(pass, bcrypt.DefaultCost)
	u.Password = string(hash)
}

// Compares User.Password with the provided plain text.
// Returns values directly as provided by the bcrypt library for downstream processing.
func (u *User) VerifyPassword(pass []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), pass)
}

// Authenticator holds the bcrypt hash of the car's admin credential. The credential itself
// lives in the persisted config and is handed over whenever it changes.
type Authenticator struct {
	cost int
	lock sync.RWMutex
	hash []byte // nil while unprovisioned
}

func NewAuthenticator(cost int) *Authenticator {
	return &Authenticator{cost: cost}
}

// SetAdminPass replaces the credential. An all zero credential means unprovisioned.
// On error the previous credential stays in place.
func (a *Authenticator) SetAdminPass(pass [onboard.ADMINPASS_LEN]byte) error {
	plain := bytes.TrimRight(pass[:], "\x00")

	var hash []byte
	if len(plain) > 0 {
		var err error
		if hash, err = bcrypt.GenerateFromPassword(plain, a.cost); err != nil {
			return err
		}
	}

	a.lock.Lock()
	a.hash = hash
	a.lock.Unlock()
	return nil
}

func (a *Authenticator) Provisioned() bool {
	a.lock.RLock()
	defer a.lock.RUnlock()
	return a.hash != nil
}

func (a *Authenticator) Verify(pass string) error {
	a.lock.RLock()
	hash := a.hash
	a.lock.RUnlock()

	if hash == nil {
		return ErrUnprovisioned
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(pass)); err != nil {
		if err == bcrypt.ErrMismatchedHashAndPassword {
			return ErrBadPassword
		}
		return err
	}
	return nil
}

//---
// Generic payloads
//---

// Login payload. An empty email or "admin" logs in with the car's admin credential.
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (l *LoginPayload) Bind(r *http.Request) error {
	return nil
}

type JWTPayload struct {
	SignedToken string `json:"token"`
}

//---
// Helper functions
//---

// Produce a standard format JWT token
func newJWT(sub string) (ts string, err error) {
	now := time.Now().UTC()
	claims := jwt.StandardClaims{
		Issuer:    ENV.JWT_ISSUER,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(JWT_LIFESPAN).Unix(),
		Subject:   sub,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return token.SignedString([]byte(ENV.JWT_SECRET))
}

//---
// Views
//---

// Login checks the credential and returns a fresh token
func Login(w http.ResponseWriter, r *http.Request) {
	data := &LoginPayload{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	if data.Email == "" || data.Email == ADMIN_USER {
		loginAdmin(w, r, data.Password)
		return
	}

	var user User
	if err := ENV.DB.One("Email", data.Email, &user); err != nil {
		if err == storm.ErrNotFound {
			render.Render(w, r, ErrNotFound)
			return
		}
		render.Render(w, r, ErrRender(err))
		return
	}

	err := user.VerifyPassword([]byte(data.Password))
	if err != nil {
		if err == bcrypt.ErrMismatchedHashAndPassword {
			render.Render(w, r, ErrPermissionDenied(ErrBadPassword))
			return
		}
		render.Render(w, r, ErrRender(err))
		return
	}

	renderToken(w, r, user.Email)
}

func loginAdmin(w http.ResponseWriter, r *http.Request, pass string) {
	err := ENV.Admin.Verify(pass)
	switch {
	case err == ErrUnprovisioned && ENV.DEBUG:
		// bench cars have no credential yet
	case err == ErrUnprovisioned, err == ErrBadPassword:
		render.Render(w, r, ErrPermissionDenied(err))
		return
	case err != nil:
		render.Render(w, r, ErrRender(err))
		return
	}

	renderToken(w, r, ADMIN_USER)
}

func renderToken(w http.ResponseWriter, r *http.Request, sub string) {
	tokenString, err := newJWT(sub)
	if err != nil {
		render.Render(w, r, ErrRender(err))
		return
	}
	render.JSON(w, r, JWTPayload{tokenString})
}

// Provides a new token to the client
func JWTRefresh(w http.ResponseWriter, r *http.Request) {
	token := r.Context().Value(jwtKey).(*jwt.Token)
	claims := token.Claims.(*jwt.StandardClaims)
	renderToken(w, r, claims.Subject)
}

//---
// Authentication middleware
//---

type contextKey string

const jwtKey contextKey = "jwt"

func ValidateJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Get token from query params
		tokenStr := r.URL.Query().Get("jwt")

		// Get token from authorization header
		if tokenStr == "" {
			bearer := r.Header.Get("Authorization")
			if len(bearer) > 7 && strings.ToUpper(bearer[0:6]) == "BEARER" {
				tokenStr = bearer[7:]
			}
		}

		// Get token from cookie
		if tokenStr == "" {
			if cookie, err := r.Cookie("jwt"); err == nil {
				tokenStr = cookie.Value
			}
		}

		if tokenStr == "" {
			render.Render(w, r, ErrUnauthorized(JWTEmpty))
			return
		}

		token, err := jwt.ParseWithClaims(tokenStr,
			&jwt.StandardClaims{},
			func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.New("unexpected signing method")
				}
				return []byte(ENV.JWT_SECRET), nil
			})

		if err != nil {
			msg := "Invalid token"
			var jwterr *jwt.ValidationError
			if errors.As(err, &jwterr) && jwterr.Errors&jwt.ValidationErrorExpired != 0 {
				msg = "Token has expired"
			}
			render.Render(w, r, ErrUnauthorized(errors.New(msg)))
			return
		}

		if !token.Valid {
			render.Render(w, r, ErrUnauthorized(errors.New("Invalid token")))
			return
		}

		ctx := context.WithValue(r.Context(), jwtKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
