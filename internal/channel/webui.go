package channel

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/stellarlinkco/cityclock/internal/answer"
	"github.com/stellarlinkco/cityclock/internal/bus"
	"github.com/stellarlinkco/cityclock/internal/config"
	"github.com/stellarlinkco/cityclock/internal/heartbeat"
	"github.com/stellarlinkco/cityclock/internal/tools"
)

//go:embed static
var staticFiles embed.FS

const webUIChannelName = "webui"

type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	id   string
}

// WebUIOptions carries the API surface the web UI serves alongside the
// chat socket.
type WebUIOptions struct {
	Functions []tools.Descriptor
	Answer    func(ctx context.Context, query string) (string, error)
	Health    func() []heartbeat.Status
}

type WebUIChannel struct {
	BaseChannel
	port      int
	functions []tools.Descriptor
	answerFn  func(ctx context.Context, query string) (string, error)
	healthFn  func() []heartbeat.Status
	server    *http.Server
	clients   sync.Map
	nextID    atomic.Int64
}

func NewWebUIChannel(cfg config.WebUIConfig, gwCfg config.GatewayConfig, b *bus.MessageBus, opts WebUIOptions) (*WebUIChannel, error) {
	port := gwCfg.Port
	if port == 0 {
		port = config.DefaultPort
	}

	ch := &WebUIChannel{
		BaseChannel: NewBaseChannel(webUIChannelName, b, cfg.AllowFrom),
		port:        port,
		functions:   opts.Functions,
		answerFn:    opts.Answer,
		healthFn:    opts.Health,
	}
	return ch, nil
}

func (w *WebUIChannel) Start(ctx context.Context) error {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("embed static fs: %w", err)
	}

	w.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", w.port),
		Handler: w.routes(staticFS),
	}

	go func() {
		log.Printf("[webui] listening on :%d", w.port)
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[webui] server error: %v", err)
		}
	}()

	return nil
}

func (w *WebUIChannel) routes(staticFS fs.FS) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	mux.HandleFunc("/ws", w.handleWS)
	mux.HandleFunc("/api/functions", w.handleFunctions)
	mux.HandleFunc("/api/answer", w.handleAnswer)
	mux.HandleFunc("/healthz", w.handleHealth)
	return mux
}

func (w *WebUIChannel) handleWS(wr http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(wr, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("[webui] websocket accept error: %v", err)
		return
	}

	clientID := fmt.Sprintf("webui-%d", w.nextID.Add(1))
	client := &wsClient{conn: conn, id: clientID}
	w.clients.Store(clientID, client)
	log.Printf("[webui] client connected: %s", clientID)

	defer func() {
		w.clients.Delete(clientID)
		conn.CloseNow()
		log.Printf("[webui] client disconnected: %s", clientID)
	}()

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		if msg.Type != "message" || msg.Content == "" {
			continue
		}

		if !w.IsAllowed(clientID) {
			log.Printf("[webui] rejected message from %s", clientID)
			continue
		}

		w.bus.Inbound <- bus.InboundMessage{
			Channel:   webUIChannelName,
			SenderID:  clientID,
			ChatID:    clientID,
			Content:   msg.Content,
			Timestamp: time.Now(),
		}
	}
}

// handleFunctions lists every callable function with its input schema.
func (w *WebUIChannel) handleFunctions(wr http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(wr, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	wr.Header().Set("Content-Type", "application/json")
	functions := w.functions
	if functions == nil {
		functions = []tools.Descriptor{}
	}
	if err := json.NewEncoder(wr).Encode(map[string]any{"functions": functions}); err != nil {
		log.Printf("[webui] encode functions: %v", err)
	}
}

type answerRequest struct {
	Query string `json:"query"`
}

type answerResponse struct {
	Answer string `json:"answer,omitempty"`
	Error  string `json:"error,omitempty"`
}

// handleAnswer invokes the agent synchronously, outside the chat socket.
func (w *WebUIChannel) handleAnswer(wr http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(wr, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if w.answerFn == nil {
		http.Error(wr, "agent not available", http.StatusServiceUnavailable)
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(wr, http.StatusBadRequest, answerResponse{Error: "invalid request body"})
		return
	}
	if req.Query == "" {
		writeJSON(wr, http.StatusBadRequest, answerResponse{Error: "query is required"})
		return
	}

	result, err := w.answerFn(r.Context(), req.Query)
	if err != nil {
		log.Printf("[webui] answer error: %v", err)
		status := http.StatusInternalServerError
		var loopErr *answer.LoopError
		if errors.As(err, &loopErr) {
			status = http.StatusBadGateway
		}
		writeJSON(wr, status, answerResponse{Error: err.Error()})
		return
	}
	writeJSON(wr, http.StatusOK, answerResponse{Answer: result})
}

// handleHealth reports provider reachability from the heartbeat probes.
func (w *WebUIChannel) handleHealth(wr http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(wr, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body := map[string]any{"status": "ok"}
	if w.healthFn != nil {
		probes := w.healthFn()
		body["probes"] = probes
		for _, p := range probes {
			if !p.Healthy {
				body["status"] = "degraded"
				break
			}
		}
	}
	writeJSON(wr, http.StatusOK, body)
}

func writeJSON(wr http.ResponseWriter, status int, body any) {
	wr.Header().Set("Content-Type", "application/json")
	wr.WriteHeader(status)
	if err := json.NewEncoder(wr).Encode(body); err != nil {
		log.Printf("[webui] encode response: %v", err)
	}
}

func (w *WebUIChannel) Send(msg bus.OutboundMessage) error {
	data, err := json.Marshal(wsMessage{
		Type:    "message",
		Content: msg.Content,
	})
	if err != nil {
		return err
	}

	client, ok := w.clients.Load(msg.ChatID)
	if !ok {
		// Broadcast to all clients if no specific target
		w.clients.Range(func(key, value any) bool {
			c := value.(*wsClient)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = c.conn.Write(ctx, websocket.MessageText, data)
			return true
		})
		return nil
	}

	c := client.(*wsClient)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (w *WebUIChannel) Stop() error {
	if w.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.server.Shutdown(ctx); err != nil {
			log.Printf("[webui] shutdown error: %v", err)
		}
	}
	w.clients.Range(func(key, value any) bool {
		c := value.(*wsClient)
		c.conn.CloseNow()
		return true
	})
	log.Printf("[webui] stopped")
	return nil
}
