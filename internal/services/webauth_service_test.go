package services

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notocbot/backend/internal/models"
)

const testBotToken = "123456:test-bot-token"

func signLogin(login *TelegramLogin) {
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

	secret := sha256.Sum256([]byte(testBotToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(strings.Join(lines, "\n")))
	login.Hash = hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyTelegramLogin(t *testing.T) {
	svc := NewWebAuthService(nil, testBotToken, nil)

	t.Run("valid signature", func(t *testing.T) {
		login := TelegramLogin{
			ID:        42,
			FirstName: "An",
			LastName:  "Nguyen",
			Username:  "annguyen",
			AuthDate:  time.Now().Unix(),
		}
		signLogin(&login)

		assert.NoError(t, svc.VerifyTelegramLogin(login))
	})

	t.Run("tampered field breaks the signature", func(t *testing.T) {
		login := TelegramLogin{
			ID:        42,
			FirstName: "An",
			AuthDate:  time.Now().Unix(),
		}
		signLogin(&login)
		login.ID = 43

		assert.ErrorIs(t, svc.VerifyTelegramLogin(login), ErrBadLoginSignature)
	})

	t.Run("stale payload is replayable and rejected", func(t *testing.T) {
		login := TelegramLogin{
			ID:        42,
			FirstName: "An",
			AuthDate:  time.Now().Add(-25 * time.Hour).Unix(),
		}
		signLogin(&login)

		assert.ErrorIs(t, svc.VerifyTelegramLogin(login), ErrLoginExpired)
	})
}

func TestIssueToken(t *testing.T) {
	viper.Set("jwt.secret_key", "test-secret")
	viper.Set("jwt.expiry_hours", 72)
	defer viper.Reset()

	svc := NewWebAuthService(nil, testBotToken, nil)
	user := &models.User{ID: 7, TelegramID: 42, FullName: "An Nguyen"}

	signed, err := svc.IssueToken(user)
	require.NoError(t, err)

	token, err := jwt.Parse(signed, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(7), claims["user_id"])
	assert.Equal(t, float64(42), claims["telegram_id"])
}

func TestLoginHandler(t *testing.T) {
	viper.Set("jwt.secret_key", "test-secret")
	viper.Set("jwt.expiry_hours", 72)
	defer viper.Reset()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewWebAuthService(db, testBotToken, NewUserService(db))

	t.Run("valid login mints a token", func(t *testing.T) {
		login := TelegramLogin{
			ID:        42,
			FirstName: "An",
			LastName:  "Nguyen",
			AuthDate:  time.Now().Unix(),
		}
		signLogin(&login)

		mock.ExpectQuery(`INSERT INTO users \(telegram_id, full_name, username\)`).
			WithArgs(int64(42), "An Nguyen", nil).
			WillReturnRows(sqlmock.NewRows([]string{"id", "telegram_id", "full_name", "username", "created_at"}).
				AddRow(int64(7), int64(42), "An Nguyen", nil, time.Now()))

		body, _ := json.Marshal(login)
		r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/telegram", bytes.NewReader(body))
		w := httptest.NewRecorder()

		svc.Login(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		var resp LoginResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, int64(7), resp.User.ID)
	})

	t.Run("bad signature is a 401", func(t *testing.T) {
		login := TelegramLogin{
			ID:        42,
			FirstName: "An",
			AuthDate:  time.Now().Unix(),
			Hash:      "deadbeef",
		}

		body, _ := json.Marshal(login)
		r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/telegram", bytes.NewReader(body))
		w := httptest.NewRecorder()

		svc.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing fields are a 400", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/telegram", strings.NewReader(`{}`))
		w := httptest.NewRecorder()

		svc.Login(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
