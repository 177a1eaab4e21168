package config

import (
	"encoding/base64"
	"fmt"
)

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	SessionAPIKey  string
	SessionKey     []byte
	AllowedOrigins []string
}

func decodeSessionSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDSN, sessionAPIKey, base64Secret string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if sessionAPIKey == "" {
		return nil, fmt.Errorf("session API key cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("session secret cannot be empty")
	}

	// The session secret is shared with the media server, which expects
	// the raw key bytes rather than the base64 form.
	sessionKey, err := decodeSessionSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode session secret: %w", err)
	}

	return &Config{
		ServerAddr:     serverAddr,
		DatabaseDSN:    databaseDSN,
		SessionAPIKey:  sessionAPIKey,
		SessionKey:     sessionKey,
		AllowedOrigins: allowedOrigins,
	}, nil
}
