package telemetry

import (
	"context"
	"encoding/json"
	"io/fs"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Frame is the JSON structure broadcast to every connected client.
type Frame struct {
	PoseX      float64 `json:"poseX"`
	PoseY      float64 `json:"poseY"`
	PoseTheta  float64 `json:"poseTheta"`
	LeftSpeed  float64 `json:"leftSpeed"`
	RightSpeed float64 `json:"rightSpeed"`
	Rudder     float64 `json:"rudder"`
	Stamp      int64   `json:"stamp"`
}

// Snapshotter supplies the live chassis state; Server polls it once
// per tick rather than depending on the chassis package
// directly, keeping telemetry decoupled from control.
type Snapshotter func() Snapshot

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Server broadcasts chassis telemetry to websocket clients at a fixed
// rate.
type Server struct {
	listenAddr string
	snapshot   Snapshotter
	logger     *Logger
	webFS      fs.FS

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex
	upgrader  websocket.Upgrader
}

// NewServer creates a telemetry Server. snapshot is called once per
// broadcast tick to obtain the latest chassis state. webFS serves the
// dashboard's static assets; pass nil to disable it.
func NewServer(listenAddr string, snapshot Snapshotter, logger *Logger, webFS fs.FS) *Server {
	return &Server{
		listenAddr: listenAddr,
		snapshot:   snapshot,
		logger:     logger,
		webFS:      webFS,
		clients:    make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run serves the websocket endpoint and the broadcast loop until ctx
// is canceled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	if s.webFS != nil {
		mux.Handle("/", http.FileServer(http.FS(s.webFS)))
	}
	mux.HandleFunc("/ws", s.handleWS)

	srv := &http.Server{Addr: s.listenAddr, Handler: mux}

	go s.broadcastLoop(ctx)

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[telemetry] listening on %s", s.listenAddr)
	return srv.ListenAndServe()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[telemetry] upgrade error: %v", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, 32)}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	s.clientsMu.Unlock()
	log.Printf("[telemetry] client connected (%d total)", len(s.clients))

	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			s.clientsMu.Unlock()
			close(client.send)
			log.Printf("[telemetry] client disconnected (%d total)", len(s.clients))
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.Close()
			}
			return
		case <-ticker.C:
			snap := s.snapshot()
			frame := Frame{
				PoseX:      snap.Pose.X,
				PoseY:      snap.Pose.Y,
				PoseTheta:  snap.Pose.Theta,
				LeftSpeed:  snap.LeftSpeed,
				RightSpeed: snap.RightSpeed,
				Rudder:     snap.Rudder,
				Stamp:      time.Now().UnixMilli(),
			}
			if s.logger != nil {
				s.logger.Record(snap)
			}
			data, err := json.Marshal(frame)
			if err != nil {
				continue
			}
			s.broadcast(data)
		}
	}
}

func (s *Server) broadcast(data []byte) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			log.Printf("[telemetry] client send buffer full, dropping frame")
		}
	}
}
