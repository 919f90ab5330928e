package models

import (
	"fmt"
	"os"

	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Hub Configuration
//
// The hub reads its settings from the environment. Command line flags in
// main override whatever is loaded here.
// ============================================================================

const (
	defaultDBPath = "data/notesync.ddb"
	defaultAddr   = ":8000"
)

// ServerConfig holds the hub settings.
type ServerConfig struct {
	DBPath    string // NOTESYNC_DB_PATH
	Addr      string // NOTESYNC_ADDR
	JWTSecret string // NOTESYNC_JWT_SECRET
}

// LoadServerConfig reads the hub configuration from environment variables.
func LoadServerConfig() *ServerConfig {
	cfg := &ServerConfig{
		DBPath:    defaultDBPath,
		Addr:      defaultAddr,
		JWTSecret: os.Getenv("NOTESYNC_JWT_SECRET"),
	}
	if v := os.Getenv("NOTESYNC_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("NOTESYNC_ADDR"); v != "" {
		cfg.Addr = v
	}
	return cfg
}

// Validate fails fast on settings the hub cannot start with.
func (c *ServerConfig) Validate() error {
	if c.DBPath == "" {
		return serr.New("NOTESYNC_DB_PATH must not be empty")
	}
	if c.Addr == "" {
		return serr.New("NOTESYNC_ADDR must not be empty")
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < MinSecretLength {
		return serr.New(fmt.Sprintf("NOTESYNC_JWT_SECRET must be at least %d characters", MinSecretLength))
	}
	return nil
}
