package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/worachat-d/go-sos-center/internal/server"
)

// station is the counterpart of the hardware SOS button: it raises an
// emergency call, fetches a media-session token and then waits on the
// realtime stream until an admin picks up or the call ends.

var (
	apiBase       string
	stationId     string
	stationName   string
	acceptTimeout time.Duration
)

type createSosResponse struct {
	SosId    string `json:"sosId"`
	RoomName string `json:"roomName"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func main() {
	godotenv.Load()

	flag.StringVar(&apiBase, "api", envOr("API_BASE_URL", "http://localhost:8000"), "SOS center base URL")
	flag.StringVar(&stationId, "station-id", os.Getenv("STATION_ID"), "station identifier")
	flag.StringVar(&stationName, "station-name", os.Getenv("STATION_NAME"), "station display name")
	flag.DurationVar(&acceptTimeout, "accept-timeout", 90*time.Second, "how long to wait for an admin before hanging up")
	flag.Parse()

	logger := log.New(os.Stderr, "[sos-station] ", log.LstdFlags)

	if stationId == "" || stationName == "" {
		logger.Fatal("station-id and station-name are required")
	}

	sos, err := createSos(apiBase, stationId, stationName)
	if err != nil {
		logger.Fatal("create sos:", err)
	}
	logger.Printf("sos %s created (room %s)", sos.SosId, sos.RoomName)

	token, err := fetchToken(apiBase, sos.RoomName, stationId)
	if err != nil {
		logger.Fatal("fetch session token:", err)
	}
	// The media client on the station consumes this token.
	fmt.Println(token)

	if err := waitForAdmin(logger, apiBase, sos.SosId); err != nil {
		logger.Fatal("wait for admin:", err)
	}
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func createSos(base, stationId, stationName string) (*createSosResponse, error) {
	body, err := json.Marshal(map[string]string{
		"stationId":   stationId,
		"stationName": stationName,
	})
	if err != nil {
		return nil, err
	}

	resp, err := http.Post(base+"/api/sos", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var sos createSosResponse
	if err := json.NewDecoder(resp.Body).Decode(&sos); err != nil {
		return nil, err
	}

	return &sos, nil
}

func fetchToken(base, room, stationId string) (string, error) {
	u := fmt.Sprintf("%s/api/session/token?room=%s&identity=%s&role=station",
		base, url.QueryEscape(room), url.QueryEscape(stationId))

	resp, err := http.Get(u)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", err
	}

	return tr.Token, nil
}

// waitForAdmin subscribes to the event's own scope and blocks until the
// call is accepted and subsequently ended, or hangs up on timeout.
func waitForAdmin(logger *log.Logger, base, sosId string) error {
	wsURL := strings.Replace(base, "http", "ws", 1) + "/ws?identity=station-" + url.QueryEscape(sosId)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial ws: %w", err)
	}
	defer conn.Close()

	join := server.ClientMessage{
		BaseMessage: server.BaseMessage{Id: 1, Timestamp: time.Now().UTC()},
		JoinEvent:   &server.JoinEvent{SosId: sosId},
	}
	if err := conn.WriteJSON(&join); err != nil {
		return fmt.Errorf("join event scope: %w", err)
	}

	deadline := time.Now().Add(acceptTimeout)
	accepted := false
	for {
		conn.SetReadDeadline(deadline)

		var msg server.ServerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !accepted {
				logger.Println("timed out waiting for an admin; hanging up")
				return endSos(base, sosId)
			}
			return err
		}

		if msg.Notification == nil {
			continue
		}

		switch {
		case msg.Notification.Accepted != nil:
			accepted = true
			// Once connected, wait for the counterpart to hang up.
			deadline = time.Time{}
			logger.Printf("call accepted by %s", msg.Notification.Accepted.AcceptedBy)
		case msg.Notification.Ended != nil:
			logger.Println("call ended")
			return nil
		}
	}
}

func endSos(base, sosId string) error {
	body, err := json.Marshal(map[string]string{"sosId": sosId})
	if err != nil {
		return err
	}

	resp, err := http.Post(base+"/api/sos/end", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	return nil
}
