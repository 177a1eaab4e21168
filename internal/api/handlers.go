package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/worachat-d/go-sos-center/internal/server"
	"github.com/worachat-d/go-sos-center/internal/sos"
)

type CreateSosRequest struct {
	StationId   string `json:"stationId"`
	StationName string `json:"stationName"`
}

type CreateSosResponse struct {
	SosId    string `json:"sosId"`
	RoomName string `json:"roomName"`
}

type AcceptSosRequest struct {
	SosId     string `json:"sosId"`
	AdminName string `json:"adminName"`
}

type AcceptSosResponse struct {
	Success  bool   `json:"success"`
	RoomName string `json:"roomName"`
}

type EndSosRequest struct {
	SosId string `json:"sosId"`
}

type EndSosResponse struct {
	Success bool `json:"success"`
}

type SessionTokenResponse struct {
	Token string `json:"token"`
}

func (s *SosCenterApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *SosCenterApp) writeCoordinatorError(w http.ResponseWriter, err error) {
	var errResp *ApiError
	switch {
	case errors.Is(err, sos.ErrInvalidArgument):
		errResp = NewBadRequestError()
	case errors.Is(err, sos.ErrEventNotFound):
		errResp = NewNotFoundError()
	case errors.Is(err, sos.ErrEventConflict):
		errResp = NewConflictError()
	default:
		errResp = NewInternalServerError(err)
	}

	s.writeJson(w, errResp.StatusCode, errResp)
}

func (s *SosCenterApp) createSos(w http.ResponseWriter, r *http.Request) {
	var req CreateSosRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	event, err := s.coordinator.Create(req.StationId, req.StationName)
	if err != nil {
		s.log.Println("create sos:", err)
		s.writeCoordinatorError(w, err)
		return
	}

	s.writeJson(w, http.StatusCreated, CreateSosResponse{
		SosId:    event.Id,
		RoomName: event.RoomName,
	})
}

func (s *SosCenterApp) acceptSos(w http.ResponseWriter, r *http.Request) {
	var req AcceptSosRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	event, err := s.coordinator.Accept(req.SosId, req.AdminName)
	if err != nil {
		if !errors.Is(err, sos.ErrEventConflict) {
			s.log.Println("accept sos:", err)
		}
		s.writeCoordinatorError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, AcceptSosResponse{
		Success:  true,
		RoomName: event.RoomName,
	})
}

func (s *SosCenterApp) endSos(w http.ResponseWriter, r *http.Request) {
	var req EndSosRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if _, err := s.coordinator.End(req.SosId); err != nil {
		s.log.Println("end sos:", err)
		s.writeCoordinatorError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, EndSosResponse{Success: true})
}

func (s *SosCenterApp) listSos(w http.ResponseWriter, _ *http.Request) {
	listing, err := s.coordinator.List()
	if err != nil {
		s.log.Println("list sos:", err)
		s.writeCoordinatorError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, listing)
}

func (s *SosCenterApp) sessionToken(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	identity := r.URL.Query().Get("identity")
	role := r.URL.Query().Get("role")

	if room == "" || identity == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	token, err := s.broker.Token(room, identity, role)
	if err != nil {
		s.log.Println("session token:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, SessionTokenResponse{Token: token})
}

func (s *SosCenterApp) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(r.URL.Query().Get("identity"), conn, s.ns, s.log)

	s.ns.RegisterChan <- client
	go client.Write()
	go client.Read()
}
