// Package sim is a stand-in upstream feed for local development: it
// speaks the same websocket protocol as the real market-data stream and
// emits random-walk bars for whatever symbols a client subscribes to.
package sim

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"github.com/shubham-shewale/tradestream/pkg/models"
)

type command struct {
	Action string   `json:"action"`
	Key    string   `json:"key"`
	Secret string   `json:"secret"`
	Bars   []string `json:"bars"`
}

type controlAck struct {
	T   string `json:"T"`
	Msg string `json:"msg"`
}

type barsPayload struct {
	Bars []models.Bar `json:"bars"`
}

// Server accepts feed connections and drives one bar emitter per client.
type Server struct {
	walker   *Walker
	interval time.Duration
	logger   *zap.Logger
}

func NewServer(walker *Walker, interval time.Duration, logger *zap.Logger) *Server {
	return &Server{walker: walker, interval: interval, logger: logger}
}

// HandleUpgrade upgrades an HTTP request into a feed session.
func (s *Server) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	go s.serve(conn)
}

func (s *Server) serve(conn net.Conn) {
	defer conn.Close()

	sess := &session{conn: conn, symbols: make(map[string]bool)}
	done := make(chan struct{})
	defer close(done)
	go s.emit(sess, done)

	s.logger.Info("feed client connected", zap.String("remote", conn.RemoteAddr().String()))
	for {
		payload, op, err := wsutil.ReadClientData(conn)
		if err != nil {
			s.logger.Info("feed client disconnected", zap.String("remote", conn.RemoteAddr().String()))
			return
		}
		if op != ws.OpText {
			continue
		}

		var cmd command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			s.logger.Debug("ignoring malformed command", zap.ByteString("payload", payload))
			continue
		}
		s.handle(sess, cmd)
	}
}

func (s *Server) handle(sess *session, cmd command) {
	switch cmd.Action {
	case "auth":
		// Any non-empty credential pair passes; this is a simulator.
		if cmd.Key != "" && cmd.Secret != "" {
			sess.setAuthed(true)
			sess.writeJSON([]controlAck{{T: "success", Msg: "authenticated"}})
			s.logger.Info("feed client authenticated")
		} else {
			sess.writeJSON([]controlAck{{T: "error", Msg: "auth failed"}})
		}
	case "subscribe":
		if !sess.isAuthed() {
			sess.writeJSON([]controlAck{{T: "error", Msg: "not authenticated"}})
			return
		}
		for _, sym := range cmd.Bars {
			sess.add(sym)
		}
		s.logger.Info("subscribed", zap.Strings("bars", cmd.Bars))
	case "unsubscribe":
		for _, sym := range cmd.Bars {
			sess.remove(sym)
		}
		s.logger.Info("unsubscribed", zap.Strings("bars", cmd.Bars))
	}
}

// emit pushes one bar per subscribed symbol every interval.
func (s *Server) emit(sess *session, done <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			for _, sym := range sess.snapshot() {
				bar := s.walker.Next(sym)
				if !sess.writeJSON(barsPayload{Bars: []models.Bar{bar}}) {
					return
				}
			}
		}
	}
}

// session is one connected feed client. The mutex guards both the
// subscription set and writes to the connection.
type session struct {
	mu      sync.Mutex
	conn    net.Conn
	authed  bool
	symbols map[string]bool
}

func (s *session) setAuthed(v bool) {
	s.mu.Lock()
	s.authed = v
	s.mu.Unlock()
}

func (s *session) isAuthed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authed
}

func (s *session) add(symbol string) {
	s.mu.Lock()
	s.symbols[symbol] = true
	s.mu.Unlock()
}

func (s *session) remove(symbol string) {
	s.mu.Lock()
	delete(s.symbols, symbol)
	s.mu.Unlock()
}

func (s *session) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.authed {
		return nil
	}
	out := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		out = append(out, sym)
	}
	return out
}

func (s *session) writeJSON(v any) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return wsutil.WriteServerText(s.conn, payload) == nil
}
