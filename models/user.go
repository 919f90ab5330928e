package models

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
	"golang.org/x/crypto/bcrypt"
)

// User is the caller identity behind every sync request.
// Notes, shares and pages reference users by GUID only.
type User struct {
	ID           int64        `json:"id"`
	GUID         string       `json:"guid"`
	Username     string       `json:"username"`
	PasswordHash string       `json:"-"`
	IsActive     bool         `json:"is_active"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	LastLoginAt  sql.NullTime `json:"-"`
}

// CreateUsersTableSQL returns the DDL for creating the users table.
const CreateUsersTableSQL = `
CREATE SEQUENCE IF NOT EXISTS users_id_seq START 1;

CREATE TABLE IF NOT EXISTS users (
    id            BIGINT PRIMARY KEY DEFAULT nextval('users_id_seq'),
    guid          VARCHAR NOT NULL UNIQUE,
    username      VARCHAR NOT NULL UNIQUE,
    password_hash VARCHAR NOT NULL,
    is_active     BOOLEAN DEFAULT true,
    created_at    TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at    TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    last_login_at TIMESTAMP
);
`

// UserCredentials is the body of both register and login requests.
type UserCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserOutput is the public view of a User
type UserOutput struct {
	GUID      string    `json:"guid"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) ToOutput() UserOutput {
	return UserOutput{GUID: u.GUID, Username: u.Username, CreatedAt: u.CreatedAt}
}

// HashPassword creates a bcrypt hash of the plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", serr.Wrap(err, "failed to hash password")
	}
	return string(hash), nil
}

// CheckPassword verifies a plaintext password against its hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword requires at least 8 characters.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return serr.New("password must be at least 8 characters")
	}
	return nil
}

// ValidateUsername requires 3-50 characters of letters, digits and underscores.
func ValidateUsername(username string) error {
	if len(username) < 3 {
		return serr.New("username must be at least 3 characters")
	}
	if len(username) > 50 {
		return serr.New("username must be at most 50 characters")
	}
	for _, c := range username {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_') {
			return serr.New("username can only contain letters, numbers, and underscores")
		}
	}
	return nil
}

// CreateUser validates, hashes and stores a new user.
func CreateUser(input UserCredentials) (*User, error) {
	if err := ValidateUsername(input.Username); err != nil {
		return nil, err
	}
	if err := ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	passwordHash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO users (guid, username, password_hash)
		VALUES (?, ?, ?)
		RETURNING id, guid, username, password_hash, is_active, created_at, updated_at, last_login_at
	`

	user := &User{}
	err = db.QueryRow(query, uuid.New().String(), input.Username, passwordHash).Scan(
		&user.ID, &user.GUID, &user.Username, &user.PasswordHash,
		&user.IsActive, &user.CreatedAt, &user.UpdatedAt, &user.LastLoginAt,
	)
	if err != nil {
		errStr := strings.ToLower(err.Error())
		if strings.Contains(errStr, "unique") || strings.Contains(errStr, "duplicate") {
			return nil, serr.New("username already exists")
		}
		return nil, serr.Wrap(err, "failed to create user")
	}

	return user, nil
}

// GetUserByUsername returns nil, nil if the user does not exist.
func GetUserByUsername(username string) (*User, error) {
	return getUser(`WHERE username = ?`, username)
}

// GetUserByGUID returns nil, nil if the user does not exist.
func GetUserByGUID(guid string) (*User, error) {
	return getUser(`WHERE guid = ?`, guid)
}

func getUser(where string, arg any) (*User, error) {
	query := `
		SELECT id, guid, username, password_hash, is_active, created_at, updated_at, last_login_at
		FROM users ` + where

	user := &User{}
	err := db.QueryRow(query, arg).Scan(
		&user.ID, &user.GUID, &user.Username, &user.PasswordHash,
		&user.IsActive, &user.CreatedAt, &user.UpdatedAt, &user.LastLoginAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, serr.Wrap(err, "failed to get user")
	}
	return user, nil
}

// AuthenticateUser returns the user for valid credentials, nil otherwise.
func AuthenticateUser(input UserCredentials) (*User, error) {
	user, err := GetUserByUsername(input.Username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	if !user.IsActive {
		return nil, serr.New("account is disabled")
	}
	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, nil
	}

	if _, err := db.Exec(`UPDATE users SET last_login_at = ? WHERE id = ?`, serverNow(), user.ID); err != nil {
		logger.LogErr(err, "failed to update last login", "user_guid", user.GUID)
	}

	return user, nil
}
