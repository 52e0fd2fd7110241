package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"

	"github.com/notocbot/backend/internal/models"
)

// WebAuthService authenticates dashboard sessions through the Telegram Login
// Widget: Telegram signs the login payload with HMAC-SHA256 keyed by
// SHA256(bot token), we verify the signature and mint a JWT for the API.
type WebAuthService struct {
	db       *sql.DB
	botToken string
	users    *UserService
}

func NewWebAuthService(db *sql.DB, botToken string, users *UserService) *WebAuthService {
	return &WebAuthService{db: db, botToken: botToken, users: users}
}

// maxAuthAge bounds how stale a widget payload may be before it is replayable.
const maxAuthAge = 24 * time.Hour

var (
	ErrBadLoginSignature = errors.New("telegram login signature mismatch")
	ErrLoginExpired      = errors.New("telegram login payload expired")
)

// TelegramLogin is the payload the Login Widget posts back.
type TelegramLogin struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
	AuthDate  int64  `json:"auth_date"`
	Hash      string `json:"hash"`
}

// VerifyTelegramLogin checks the widget signature: the data-check string is
// every field except hash, sorted, joined as k=v lines, HMAC'd with
// SHA256(bot token) as the key. Comparison is constant-time.
func (s *WebAuthService) VerifyTelegramLogin(login TelegramLogin) error {
	fields := map[string]string{
		"id":         strconv.FormatInt(login.ID, 10),
		"first_name": login.FirstName,
		"auth_date":  strconv.FormatInt(login.AuthDate, 10),
	}
	if login.LastName != "" {
		fields["last_name"] = login.LastName
	}
	if login.Username != "" {
		fields["username"] = login.Username
	}
	if login.PhotoURL != "" {
		fields["photo_url"] = login.PhotoURL
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}
	checkString := strings.Join(lines, "\n")

	secret := sha256.Sum256([]byte(s.botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(checkString))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(login.Hash)) {
		return ErrBadLoginSignature
	}
	if time.Since(time.Unix(login.AuthDate, 0)) > maxAuthAge {
		return ErrLoginExpired
	}
	return nil
}

// IssueToken mints the dashboard JWT for a verified user.
func (s *WebAuthService) IssueToken(user *models.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":     user.ID,
		"telegram_id": user.TelegramID,
		"exp":         time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
		"iat":         time.Now().Unix(),
	})
	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

// LoginResponse is the authentication response
type LoginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Login handles the widget callback
// @Summary Authenticate via Telegram Login Widget
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} LoginResponse "Login successful"
// @Failure 401 {string} string "Signature invalid or expired"
// @Router /auth/telegram [post]
func (s *WebAuthService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[WebAuth] Login attempt from IP: %s", r.RemoteAddr)

	login, ok := decodeJSONBody[TelegramLogin](w, r)
	if !ok {
		return
	}
	if login.ID == 0 || login.Hash == "" || login.AuthDate == 0 {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := s.VerifyTelegramLogin(*login); err != nil {
		log.Printf("[WebAuth] Login rejected for telegram id %d: %v", login.ID, err)
		SendErrorResponse(w, "Authentication failed", http.StatusUnauthorized, nil)
		return
	}

	fullName := login.FirstName
	if login.LastName != "" {
		fullName = fmt.Sprintf("%s %s", login.FirstName, login.LastName)
	}
	var username *string
	if login.Username != "" {
		username = &login.Username
	}

	user, err := s.users.GetOrCreateUser(r.Context(), login.ID, fullName, username)
	if err != nil {
		log.Printf("[WebAuth] Login failed to upsert user %d: %v", login.ID, err)
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}

	token, err := s.IssueToken(user)
	if err != nil {
		log.Printf("[WebAuth] Token signing failed for user %d: %v", user.ID, err)
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[WebAuth] Login successful for user %d (telegram %d)", user.ID, user.TelegramID)
	SendJSONResponse(w, http.StatusOK, LoginResponse{Token: token, User: *user})
}
