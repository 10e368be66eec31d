package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserIDKey is the key type for storing the student id in a request context.
type UserIDKey string

const userIDKey UserIDKey = "userID"

// account is a login identity. Accounts exist so the glue layer can hand a
// stable student id to the engine; auth hardening stays out of scope.
type account struct {
	ID           int
	Email        string
	PasswordHash string
}

type accountStore struct {
	mu      sync.Mutex
	byEmail map[string]*account
	nextID  int
}

func newAccountStore() *accountStore {
	return &accountStore{byEmail: make(map[string]*account), nextID: 1}
}

func (s *accountStore) create(email, passwordHash string) (*account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[email]; exists {
		return nil, false
	}
	acc := &account{ID: s.nextID, Email: email, PasswordHash: passwordHash}
	s.nextID++
	s.byEmail[email] = acc
	return acc, true
}

func (s *accountStore) lookup(email string) (*account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.byEmail[email]
	return acc, ok
}

func (a *App) registerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}

		type RegisterRequest struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}

		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}

		req.Email = strings.TrimSpace(req.Email)
		req.Password = strings.TrimSpace(req.Password)
		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "missing_fields")
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "hash_error")
			a.logger.Error("hashing password", zap.Error(err))
			return
		}

		acc, created := a.accounts.create(req.Email, string(hashedPassword))
		if !created {
			writeError(w, http.StatusConflict, "email_exists")
			return
		}

		// Token for automatic login after signup
		tokenString, err := a.issueToken(acc.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "token_generation_error")
			a.logger.Error("generating token for new user", zap.Error(err))
			return
		}

		writeJSON(w, http.StatusCreated, map[string]interface{}{"token": tokenString, "id": acc.ID})
	}
}

func (a *App) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}

		type LoginRequest struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}

		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}

		req.Email = strings.TrimSpace(req.Email)
		req.Password = strings.TrimSpace(req.Password)
		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "missing_fields")
			return
		}

		acc, ok := a.accounts.lookup(req.Email)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}

		// Compare the provided password with the stored hash
		if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}

		tokenString, err := a.issueToken(acc.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "token_generation_error")
			a.logger.Error("generating token", zap.Error(err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"token": tokenString, "id": acc.ID})
	}
}

func (a *App) issueToken(userID int) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"expires": time.Now().Add(24 * time.Hour).Unix(),
	})
	return token.SignedString([]byte(a.cfg.JWTSecret))
}

func (a *App) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := a.userIDFromRequest(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}

// userIDFromRequest accepts the bearer header, or a ?token= query parameter
// for WebSocket clients that cannot set headers.
func (a *App) userIDFromRequest(r *http.Request) (int, bool) {
	tokenStr := ""
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		tokenStr = strings.TrimPrefix(authHeader, "Bearer ")
	} else if q := r.URL.Query().Get("token"); q != "" {
		tokenStr = q
	}
	if tokenStr == "" {
		return 0, false
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return []byte(a.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, false
	}
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, false
	}
	return int(userID), true
}
