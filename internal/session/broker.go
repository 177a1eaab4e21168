package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	RoleAdmin   = "admin"
	RoleStation = "station"

	// Media sessions are short: participants fetch a fresh token per call.
	tokenTTL = 10 * time.Minute
)

// Broker issues media-session credentials compatible with the LiveKit
// access token format: an HS256 JWT whose video claim grants entry to a
// single room. The room name itself comes from the coordinator, so all
// participants derive the same session independently.
type Broker struct {
	apiKey string
	secret []byte
}

func NewBroker(apiKey string, secret []byte) *Broker {
	return &Broker{
		apiKey: apiKey,
		secret: secret,
	}
}

type videoGrant struct {
	Room         string `json:"room"`
	RoomJoin     bool   `json:"roomJoin"`
	CanPublish   bool   `json:"canPublish"`
	CanSubscribe bool   `json:"canSubscribe"`
}

// Identity prefixes the participant name with its role so admin and
// station legs of the same call never collide in the room.
func Identity(role, participant string) string {
	if role != RoleAdmin {
		role = RoleStation
	}
	return fmt.Sprintf("%s-%s", role, participant)
}

func (b *Broker) Token(roomName, participant, role string) (string, error) {
	if roomName == "" {
		return "", fmt.Errorf("room name is required")
	}
	if participant == "" {
		return "", fmt.Errorf("participant identity is required")
	}

	now := time.Now()
	identity := Identity(role, participant)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": b.apiKey,
		"sub": identity,
		"jti": identity,
		"nbf": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
		"video": videoGrant{
			Room:         roomName,
			RoomJoin:     true,
			CanPublish:   true,
			CanSubscribe: true,
		},
	})

	return token.SignedString(b.secret)
}
