package trafficlight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

type phaseReader interface {
	CurrentPhase() Phase
	LastTransition() time.Time
}

type Responder struct {
	addr     string
	interval time.Duration
	light    phaseReader
	upgrader websocket.Upgrader
}

type PhaseStatus struct {
	Phase Phase  `json:"phase"`
	Since string `json:"since"`
}

func NewResponder(cfg *ResponderConfig, light phaseReader) *Responder {
	interval := cfg.WatchInterval
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	return &Responder{
		addr:     cfg.Addr,
		interval: interval,
		light:    light,
	}
}

func (r *Responder) Run(ctx context.Context) error {
	srv := http.Server{
		Addr:    r.addr,
		Handler: r.Handler(ctx),
	}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	logger.Info("listening", "module", "responder", "addr", r.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler serves the light. Websocket streams end when ctx is done.
func (r *Responder) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", r.handleRoot)
	mux.HandleFunc("/phase", r.handlePhase)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		r.handleWebsocket(ctx, w, req)
	})
	return mux
}

func (r *Responder) status() PhaseStatus {
	s := PhaseStatus{Phase: r.light.CurrentPhase()}
	if t := r.light.LastTransition(); !t.IsZero() {
		s.Since = t.Format(time.RFC3339)
	}
	return s
}

func (r *Responder) handleRoot(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	code := http.StatusOK
	msg := "OK"
	p := r.light.CurrentPhase()
	switch p {
	case PhaseGreen:
	case PhaseRed:
		code = http.StatusServiceUnavailable
		msg = "Service Unavailable"
	default:
		logger.Warn("unknown phase", "module", "responder", "phase", p)
		code = http.StatusInternalServerError
		msg = "Internal Server Error"
	}
	w.WriteHeader(code)
	fmt.Fprintln(w, msg)
}

func (r *Responder) handlePhase(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(r.status())
}

func (r *Responder) handleWebsocket(ctx context.Context, w http.ResponseWriter, req *http.Request) {
	log := logger.With("module", "responder", "remote", req.RemoteAddr)
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()

	// the read loop only notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	last := r.status()
	if err := conn.WriteJSON(last); err != nil {
		return
	}
	log.Debug("websocket connected")
	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(time.Second))
			return
		case <-closed:
			log.Debug("websocket closed by client")
			return
		case <-ticker.C:
		}
		s := r.status()
		if s == last {
			continue
		}
		last = s
		if err := conn.WriteJSON(s); err != nil {
			log.Debug("websocket write failed", "error", err.Error())
			return
		}
	}
}
