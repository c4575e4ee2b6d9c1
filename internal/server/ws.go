package server

import (
	"net/http"
	"time"

	"github.com/KaramelBytes/chainpulse/internal/session"
	"github.com/gorilla/websocket"
	"github.com/labstack/gommon/log"
)

const (
	maxMessageSize = 4096
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// serveWS recomputes the dashboard for every Params message received. Each
// reply is an Envelope, as for the JSON endpoints.
func (a *App) serveWS(w http.ResponseWriter, r *http.Request) {
	s, err := a.session(r)
	if err != nil {
		writeResult(w, nil, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("[WS] Upgrade failed for session %s: %v", s.ID(), err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
	log.Debugf("[WS] Client connected to session %s", s.ID())

	for {
		p := s.DefaultParams()
		if err := conn.ReadJSON(&p); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("[WS] Read on session %s: %v", s.ID(), err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		env := Envelope{}
		if err := validateParams(p); err != nil {
			env.Error = &ErrorBody{Kind: "bad_request", Message: err.Error()}
		} else {
			env = dashboardEnvelope(s, p)
		}
		if err := conn.WriteJSON(env); err != nil {
			log.Warnf("[WS] Write on session %s: %v", s.ID(), err)
			return
		}
	}
}

func dashboardEnvelope(s *session.Session, p session.Params) Envelope {
	d, err := s.Dashboard(p)
	if d == nil {
		env := Envelope{Error: &ErrorBody{Kind: "internal", Message: err.Error()}}
		if cre := columnError(err); cre != nil {
			env.Error = &ErrorBody{Kind: "column_resolution", Message: cre.Error(), Role: cre.Role, Column: cre.Column}
		}
		return env
	}
	env := Envelope{Data: d, Warnings: d.Warnings, Partial: d.Partial()}
	if err != nil {
		env.Error = &ErrorBody{Kind: "data_quality", Message: err.Error(), Issues: d.Issues}
	}
	return env
}
