package main

import (
	"embed"
	"encoding/base64"
	"encoding/json"
	"html/template"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"
)

//go:embed templates/*
var templatesFS embed.FS

// StatusServer is the UI collaborator: it receives every state the poller
// publishes and fans it out over a REST surface and a websocket push
// channel. It owns no scheduling state of its own.
type StatusServer struct {
	cfg    *Config
	poller *Poller
	router *gin.Engine
	hub    *StateHub

	mu     sync.RWMutex
	latest *PrinterState
}

// StateHub manages websocket subscribers and broadcasts state snapshots.
type StateHub struct {
	clients    map[*StateClient]bool
	register   chan *StateClient
	unregister chan *StateClient
	broadcast  chan []byte
}

// StateClient is one websocket subscriber.
type StateClient struct {
	hub  *StateHub
	conn *websocket.Conn
	send chan []byte
}

// StateMessage is the payload pushed to websocket clients on every fetch.
type StateMessage struct {
	Type      string       `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	Backend   string       `json:"backend"`
	State     PrinterState `json:"state"`
	Summary   string       `json:"summary"`
}

func NewStatusServer(cfg *Config, poller *Poller) *StatusServer {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	hub := &StateHub{
		clients:    make(map[*StateClient]bool),
		register:   make(chan *StateClient),
		unregister: make(chan *StateClient),
		// Buffered so a snapshot arriving while the hub is mid-broadcast
		// is queued, not dropped. Push order tracks fetch order.
		broadcast:  make(chan []byte, 16),
	}

	s := &StatusServer{
		cfg:    cfg,
		poller: poller,
		router: router,
		hub:    hub,
	}

	go hub.run()

	s.setupRoutes()
	return s
}

func (s *StatusServer) setupRoutes() {
	tmpl := template.Must(template.New("").ParseFS(templatesFS, "templates/*"))
	s.router.SetHTMLTemplate(tmpl)

	s.router.GET("/", s.dashboardHandler)

	api := s.router.Group("/api")
	{
		api.GET("/status", s.statusHandler)
		api.GET("/printer_url", s.printerURLHandler)
		api.POST("/backend", s.switchBackendHandler)
	}

	s.router.GET("/ws/status", s.websocketHandler)
}

// Start blocks serving HTTP on the given port.
func (s *StatusServer) Start(port string) error {
	log.Printf("Status server listening on :%s", port)
	return s.router.Run(":" + port)
}

// OnState is the poller's sink: remember the snapshot and push it out.
func (s *StatusServer) OnState(state PrinterState) {
	s.mu.Lock()
	s.latest = &state
	s.mu.Unlock()

	message := StateMessage{
		Type:      "state_update",
		Timestamp: time.Now(),
		Backend:   s.currentBackend(),
		State:     state,
		Summary:   state.Summary(),
	}
	payload, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling state message: %v", err)
		return
	}

	select {
	case s.hub.broadcast <- payload:
	default:
	}
}

func (s *StatusServer) currentBackend() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Backend
}

func (s *StatusServer) latestState() PrinterState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return PrinterState{Status: StatusUnknown}
	}
	return *s.latest
}

// run is the hub loop: one goroutine owns the client set.
func (h *StateHub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			log.Printf("Websocket client connected (total: %d)", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			log.Printf("Websocket client disconnected (total: %d)", len(h.clients))

		case payload := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- payload:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

func (s *StatusServer) websocketHandler(c *gin.Context) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Websocket upgrade error: %v", err)
		return
	}

	client := &StateClient{hub: s.hub, conn: conn, send: make(chan []byte, 64)}
	s.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump drains (and ignores) client messages; its job is noticing
// disconnects and keeping the read deadline fresh via pongs.
func (c *StateClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Websocket error: %v", err)
			}
			break
		}
	}
}

// writePump forwards broadcasts to the client and pings on a schedule.
func (c *StateClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dashboardHandler serves the live status page.
func (s *StatusServer) dashboardHandler(c *gin.Context) {
	state := s.latestState()
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Backend": s.currentBackend(),
		"State":   state,
		"Summary": state.Summary(),
	})
}

// statusHandler returns the most recent canonical state.
func (s *StatusServer) statusHandler(c *gin.Context) {
	state := s.latestState()
	c.JSON(http.StatusOK, gin.H{
		"backend": s.currentBackend(),
		"state":   state,
		"summary": state.Summary(),
	})
}

// printerURLHandler returns the printer's own UI address plus a QR code so
// a phone camera can open it directly.
func (s *StatusServer) printerURLHandler(c *gin.Context) {
	s.mu.RLock()
	url := s.cfg.PrinterUIURL()
	s.mu.RUnlock()

	if url == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No printer URL configured"})
		return
	}

	qrBase64 := ""
	if png, err := qrcode.Encode(url, qrcode.Medium, 256); err != nil {
		log.Printf("Error generating QR code for %s: %v", url, err)
	} else {
		qrBase64 = base64.StdEncoding.EncodeToString(png)
	}

	c.JSON(http.StatusOK, gin.H{
		"url":            url,
		"qr_code_base64": qrBase64,
	})
}

// switchBackendRequest is the hot-swap payload. Omitted fields keep their
// current values.
type switchBackendRequest struct {
	Backend    string `json:"backend" binding:"required"`
	PrinterURL string `json:"printer_url"`
	AuthMode   string `json:"auth_mode"`
	Username   string `json:"username"`
}

// switchBackendHandler rebuilds the adapter for a new backend and swaps it
// into the running poller without disturbing its timer.
func (s *StatusServer) switchBackendHandler(c *gin.Context) {
	var req switchBackendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	s.mu.Lock()
	next := *s.cfg
	next.Backend = req.Backend
	if req.PrinterURL != "" {
		next.PrinterBaseURL = req.PrinterURL
	}
	if req.AuthMode != "" {
		next.AuthMode = req.AuthMode
	}
	if req.Username != "" {
		next.Username = req.Username
	}
	s.mu.Unlock()

	adapter, err := CreateAdapter(&next)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.cfg = &next
	s.mu.Unlock()

	s.poller.SetAdapter(adapter)
	c.JSON(http.StatusOK, gin.H{"message": "Backend switched", "backend": next.Backend})
}
