package api

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"vns-engine/compiler"
	"vns-engine/formats"
	_ "vns-engine/formats/archive"
	_ "vns-engine/formats/vns"
	"vns-engine/luabridge"
	"vns-engine/parser"
	"vns-engine/simulator"
	"vns-engine/storage"
	"vns-engine/vm"
	"vns-engine/watcher"
)

// Version è la versione riportata da /api/health e /api/version
const Version = "0.1.0"

// Server rappresenta il server API
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	root       string
	fsys       fs.FS
	entry      string
	maxSteps   int
	debounce   time.Duration
	store      *storage.SaveStore
	sessions   *sessionStore
	hub        *Hub
	wsUpgrader websocket.Upgrader
	logger     *zap.Logger

	watcherMutex sync.Mutex
	watcher      *watcher.FileWatcher
}

// ServerConfig configurazione del server
type ServerConfig struct {
	Port        int
	Root        string             // cartella delle storie
	FS          fs.FS              // default: os.DirFS(Root)
	Entry       string             // file iniziale predefinito
	CORSOrigins []string           // vuoto = CORS disabilitato
	Debug       bool               // modalità debug di gin
	MaxSteps    int                // limite di passi per richiesta
	Debounce    time.Duration      // debounce del watcher
	Store       *storage.SaveStore // nil = salvataggi disabilitati
	Logger      *zap.Logger
}

// NewServer crea un nuovo server API
func NewServer(config ServerConfig) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.FS == nil {
		config.FS = os.DirFS(config.Root)
	}
	if config.Entry == "" {
		config.Entry = "main." + formats.DefaultExtension
	}
	if config.MaxSteps <= 0 {
		config.MaxSteps = simulator.DefaultMaxSteps
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(config.Logger))

	if len(config.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     config.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	server := &Server{
		router:   router,
		root:     config.Root,
		fsys:     config.FS,
		entry:    config.Entry,
		maxSteps: config.MaxSteps,
		debounce: config.Debounce,
		store:    config.Store,
		sessions: newSessionStore(),
		hub:      NewHub(config.Logger),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: config.Logger,
	}

	server.setupRoutes()
	server.httpServer = &http.Server{Addr: fmt.Sprintf(":%d", config.Port), Handler: router}

	return server
}

// Handler restituisce il router, utile nei test
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configura tutti gli endpoint
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/health", s.healthCheck)
		api.GET("/version", s.getVersion)
		api.GET("/formats", s.getFormats)

		// Story endpoints
		api.POST("/story/parse", s.parseStory)
		api.POST("/story/compile", s.compileStory)
		api.POST("/story/validate", s.validateStory)
		api.POST("/story/functions", s.listFunctions)

		// Simulator endpoints
		api.POST("/simulator/simulate", s.simulateStory)
		api.POST("/simulator/suggest", s.suggestPaths)

		// Session endpoints
		api.POST("/sessions", s.createSession)
		api.GET("/sessions/:id", s.getSession)
		api.DELETE("/sessions/:id", s.deleteSession)
		api.POST("/sessions/:id/step", s.stepSession)
		api.POST("/sessions/:id/globals", s.setSessionGlobal)
		api.POST("/sessions/:id/save", s.saveSession)
		api.POST("/sessions/:id/load", s.loadSession)
		api.GET("/saves", s.listSaves)

		// Watcher endpoints
		api.POST("/watch/start", s.startWatcher)
		api.POST("/watch/stop", s.stopWatcher)
		api.GET("/watch/status", s.getWatcherStatus)
	}

	s.router.GET("/ws", s.handleWebSocket)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Start avvia il server e blocca fino a Shutdown
func (s *Server) Start() error {
	addr := s.httpServer.Addr
	s.logger.Info("server avviato",
		zap.String("api", fmt.Sprintf("http://localhost%s/api", addr)),
		zap.String("ws", fmt.Sprintf("ws://localhost%s/ws", addr)),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server http: %w", err)
	}
	return nil
}

// Shutdown ferma server, watcher e client WebSocket
func (s *Server) Shutdown(ctx context.Context) error {
	s.watcherMutex.Lock()
	if s.watcher != nil && s.watcher.IsRunning() {
		_ = s.watcher.Stop()
	}
	s.watcher = nil
	s.watcherMutex.Unlock()

	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

// ============================================
// Helpers
// ============================================

func (s *Server) entryOrDefault(entry string) string {
	if entry == "" {
		return s.entry
	}
	return entry
}

// build compila la storia e aggiorna le metriche
func (s *Server) build(options compiler.CompileOptions) (*compiler.CompileResult, error) {
	options.Entry = s.entryOrDefault(options.Entry)
	result, err := compiler.Build(s.fsys, options, s.logger)
	compilationsTotal.WithLabelValues(compilationStatus(err == nil)).Inc()
	return result, err
}

// newRegistry crea le funzioni native, Lua compreso, per una storia compilata
func (s *Server) newRegistry(result *compiler.CompileResult) (*vm.Registry, error) {
	bridge := luabridge.New(s.logger)
	if err := bridge.LoadPackage(result.Package); err != nil {
		return nil, err
	}
	return simulator.NewRegistry(s.logger, bridge.Install), nil
}

func compileFailed(c *gin.Context, result *compiler.CompileResult, err error) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"success":     false,
		"error":       err.Error(),
		"parse_error": result.ParseError,
	})
}

// ============================================
// Handlers
// ============================================

// healthCheck verifica lo stato del server
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": Version,
	})
}

func (s *Server) getVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"version": Version,
	})
}

// getFormats restituisce le estensioni importabili
func (s *Server) getFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"formats": formats.GetAvailableFormats(),
	})
}

// ParseStoryRequest richiesta di parsing di un singolo documento.
// Con Content vuoto il file viene letto dalla cartella delle storie.
type ParseStoryRequest struct {
	FilePath string `json:"file_path" binding:"required"`
	Content  string `json:"content"`
}

// parseStory parsa un documento senza seguirne gli import
func (s *Server) parseStory(c *gin.Context) {
	var req ParseStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	content := []byte(req.Content)
	if req.Content == "" {
		path, err := formats.PathRules{}.SanitizePath(req.FilePath)
		if err == nil {
			content, err = fs.ReadFile(s.fsys, path)
		}
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
	}

	doc, err := parser.ParseBytes(req.FilePath, content)
	if err != nil {
		var perr *parser.ParseError
		errors.As(err, &perr)
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success":     false,
			"error":       err.Error(),
			"parse_error": perr,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"document": doc,
		"chapters": len(doc.Story.Chapters),
	})
}

// CompileStoryRequest richiesta di compilazione
type CompileStoryRequest struct {
	Entry     string `json:"entry"`
	StartNode string `json:"start_node"`
	Strict    bool   `json:"strict"`
}

// compileStory carica il pacchetto a partire da entry
func (s *Server) compileStory(c *gin.Context) {
	var req CompileStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.build(compiler.CompileOptions{Entry: req.Entry, StartNode: req.StartNode, StrictMode: req.Strict})
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// validateStory compila e controlla la storia contro le funzioni disponibili
func (s *Server) validateStory(c *gin.Context) {
	var req CompileStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.build(compiler.CompileOptions{Entry: req.Entry, StartNode: req.StartNode, StrictMode: req.Strict})
	if err != nil {
		compileFailed(c, result, err)
		return
	}
	registry, err := s.newRegistry(result)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
		return
	}

	issues := simulator.ValidateStory(result.Story, registry)
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"valid":    len(issues) == 0,
		"issues":   issues,
		"warnings": result.Warnings,
		"entry":    result.App.Entry,
	})
}

// listFunctions elenca le funzioni native disponibili alla storia
func (s *Server) listFunctions(c *gin.Context) {
	var req CompileStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.build(compiler.CompileOptions{Entry: req.Entry})
	if err != nil {
		compileFailed(c, result, err)
		return
	}
	registry, err := s.newRegistry(result)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"functions": registry.Describe(),
	})
}

// ============================================
// Simulator Handlers
// ============================================

// SimulateRequest richiesta di simulazione
type SimulateRequest struct {
	Entry    string `json:"entry"`
	Chapter  string `json:"chapter"`
	Label    string `json:"label"`
	Choices  []int  `json:"choices"`
	MaxSteps int    `json:"max_steps"`
}

// simulateStory esegue la storia senza renderer e restituisce la trascrizione
func (s *Server) simulateStory(c *gin.Context) {
	var req SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MaxSteps <= 0 || req.MaxSteps > s.maxSteps {
		req.MaxSteps = s.maxSteps
	}

	result, err := s.build(compiler.CompileOptions{Entry: req.Entry, StartNode: req.Chapter})
	if err != nil {
		compileFailed(c, result, err)
		return
	}
	bridge := luabridge.New(s.logger)
	if err := bridge.LoadPackage(result.Package); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
		return
	}

	sim := simulator.NewPathSimulator(result.Story, simulator.Options{
		MaxSteps: req.MaxSteps,
		Chooser:  simulator.ScriptedChoices(req.Choices...),
		Logger:   s.logger,
		Install:  []func(*vm.Registry){bridge.Install},
	})
	c.JSON(http.StatusOK, sim.Simulate(result.App.Entry, req.Label))
}

// SuggestPathsRequest richiesta di suggerimento percorsi
type SuggestPathsRequest struct {
	Entry    string `json:"entry"`
	Start    string `json:"start"`
	MaxDepth int    `json:"max_depth"`
}

// suggestPaths suggerisce percorsi tra capitoli
func (s *Server) suggestPaths(c *gin.Context) {
	var req SuggestPathsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.MaxDepth == 0 || req.MaxDepth > 10 {
		req.MaxDepth = 5
	}

	result, err := s.build(compiler.CompileOptions{Entry: req.Entry, StartNode: req.Start})
	if err != nil {
		compileFailed(c, result, err)
		return
	}

	paths := simulator.SuggestPaths(result.Story, result.App.Entry, req.MaxDepth)
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"start":     result.App.Entry,
		"max_depth": req.MaxDepth,
		"paths":     paths,
		"count":     len(paths),
	})
}

// ============================================
// Session Handlers
// ============================================

// CreateSessionRequest richiesta di nuova sessione
type CreateSessionRequest struct {
	Entry   string `json:"entry"`
	Chapter string `json:"chapter"`
	Label   string `json:"label"`
	Choices []int  `json:"choices"`
}

// createSession compila la storia, crea la VM ed entra nel capitolo iniziale
func (s *Server) createSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry := s.entryOrDefault(req.Entry)

	result, err := s.build(compiler.CompileOptions{Entry: entry, StartNode: req.Chapter})
	if err != nil {
		compileFailed(c, result, err)
		return
	}
	registry, err := s.newRegistry(result)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
		return
	}

	machine := vm.New(registry, s.logger)
	machine.AddStory(result.Story)
	stage := simulator.NewStage(result.Story, simulator.ScriptedChoices(req.Choices...)).Attach(machine.Context())

	if !machine.Enter(result.App.Entry, req.Label) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   fmt.Sprintf("capitolo iniziale '%s' non trovato", result.App.Entry),
		})
		return
	}

	session := s.sessions.add(entry, machine, stage)
	s.logger.Info("sessione creata", zap.String("id", session.ID), zap.String("entry", entry))

	session.mu.Lock()
	view := session.view()
	session.mu.Unlock()
	c.JSON(http.StatusCreated, view)
}

func (s *Server) session(c *gin.Context) (*Session, bool) {
	session, ok := s.sessions.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "sessione non trovata"})
	}
	return session, ok
}

func (s *Server) getSession(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	session.mu.Lock()
	view := session.view()
	session.mu.Unlock()
	c.JSON(http.StatusOK, view)
}

func (s *Server) deleteSession(c *gin.Context) {
	if !s.sessions.remove(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "sessione non trovata"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// StepRequest richiesta di avanzamento
type StepRequest struct {
	Steps int `json:"steps"` // default 1
}

// stepSession esegue fino a Steps passi; un errore di dispatch interrompe con 422
func (s *Server) stepSession(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}

	var req StepRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Steps <= 0 {
		req.Steps = 1
	}
	if req.Steps > s.maxSteps {
		req.Steps = s.maxSteps
	}

	session.mu.Lock()
	var stepErr error
	executed := 0
	for executed < req.Steps && session.machine.IsRunning() {
		if stepErr = session.machine.Step(); stepErr != nil {
			break
		}
		executed++
		session.steps++
	}
	view := session.view()
	session.mu.Unlock()

	state := "running"
	if !view.Running {
		state = "stopped"
	}
	stepsTotal.WithLabelValues(state).Add(float64(executed))

	if stepErr != nil {
		var dispatchErr *vm.DispatchError
		if errors.As(stepErr, &dispatchErr) {
			dispatchErrorsTotal.Inc()
		}
		s.logger.Warn("passo fallito", zap.String("session", session.ID), zap.Error(stepErr))
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":    stepErr.Error(),
			"dispatch": dispatchErr,
			"session":  view,
		})
		return
	}

	s.hub.Broadcast("step", gin.H{"session": view.ID, "executed": executed, "frames": view.Frames, "running": view.Running})
	c.JSON(http.StatusOK, gin.H{"executed": executed, "session": view})
}

// SetGlobalRequest imposta una globale; Value nullo la cancella
type SetGlobalRequest struct {
	Name  string        `json:"name" binding:"required"`
	Value *parser.Value `json:"value"`
}

func (s *Server) setSessionGlobal(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	var req SetGlobalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session.mu.Lock()
	if req.Value == nil {
		session.machine.Globals().Delete(req.Name)
	} else {
		session.machine.Globals().Set(req.Name, *req.Value)
	}
	view := session.view()
	session.mu.Unlock()

	c.JSON(http.StatusOK, view)
}

// SlotRequest identifica uno slot di salvataggio
type SlotRequest struct {
	Slot string `json:"slot" binding:"required"`
}

func (s *Server) requireStore(c *gin.Context) bool {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "salvataggi non configurati"})
		return false
	}
	return true
}

func (s *Server) saveSession(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	session, ok := s.session(c)
	if !ok {
		return
	}
	var req SlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session.mu.Lock()
	state := session.machine.Snapshot()
	session.mu.Unlock()

	err := s.store.Save(c.Request.Context(), req.Slot, session.Entry, state)
	if errors.Is(err, storage.ErrSlotRequired) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "slot": req.Slot})
}

func (s *Server) loadSession(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	session, ok := s.session(c)
	if !ok {
		return
	}
	var req SlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := s.store.Load(c.Request.Context(), req.Slot)
	if errors.Is(err, storage.ErrSaveNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if record.Story != session.Entry {
		c.JSON(http.StatusConflict, gin.H{
			"error": fmt.Sprintf("lo slot appartiene a %s, la sessione a %s", record.Story, session.Entry),
		})
		return
	}

	session.mu.Lock()
	session.machine.Restore(record.State)
	view := session.view()
	session.mu.Unlock()

	c.JSON(http.StatusOK, view)
}

func (s *Server) listSaves(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	saves, err := s.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "saves": saves})
}

// ============================================
// Watcher Handlers
// ============================================

// StartWatcherRequest richiesta avvio watcher
type StartWatcherRequest struct {
	Entry string `json:"entry"`
}

// startWatcher avvia il file watcher sulla cartella delle storie
func (s *Server) startWatcher(c *gin.Context) {
	var req StartWatcherRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	fw, err := s.StartWatcher(req.Entry)
	if errors.Is(err, errWatcherRunning) || errors.Is(err, errNoRoot) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Watcher avviato",
		"paths":   fw.WatchedPaths(),
		"entry":   s.entryOrDefault(req.Entry),
	})
}

var (
	errWatcherRunning = errors.New("watcher già in esecuzione")
	errNoRoot         = errors.New("cartella delle storie non configurata")
)

// StartWatcher avvia la ricarica automatica: a ogni compilazione riuscita
// le sessioni avviate da entry ricevono i nuovi capitoli.
func (s *Server) StartWatcher(entry string) (*watcher.FileWatcher, error) {
	s.watcherMutex.Lock()
	defer s.watcherMutex.Unlock()

	if s.watcher != nil && s.watcher.IsRunning() {
		return nil, errWatcherRunning
	}
	if s.root == "" {
		return nil, errNoRoot
	}
	entry = s.entryOrDefault(entry)

	fw, err := watcher.NewFileWatcher(watcher.WatcherConfig{
		Root:         s.root,
		Options:      compiler.CompileOptions{Entry: entry},
		DebounceTime: s.debounce,
		OnCompile:    func(result *compiler.CompileResult) { s.reloadSessions(entry, result) },
		Logger:       s.logger,
	})
	if err != nil {
		return nil, err
	}
	if err := fw.Start(); err != nil {
		return nil, err
	}

	s.watcher = fw
	go s.broadcastWatcherEvents(fw)
	return fw, nil
}

// stopWatcher ferma il file watcher
func (s *Server) stopWatcher(c *gin.Context) {
	s.watcherMutex.Lock()
	defer s.watcherMutex.Unlock()

	if s.watcher == nil || !s.watcher.IsRunning() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Watcher non in esecuzione"})
		return
	}

	if err := s.watcher.Stop(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.watcher = nil

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Watcher fermato",
	})
}

// getWatcherStatus ottiene lo stato del watcher
func (s *Server) getWatcherStatus(c *gin.Context) {
	s.watcherMutex.Lock()
	defer s.watcherMutex.Unlock()

	status := gin.H{"running": s.watcher != nil && s.watcher.IsRunning()}
	if s.watcher != nil {
		status["paths"] = s.watcher.WatchedPaths()
		if last := s.watcher.LastResult(); last != nil {
			status["last_success"] = last.Success
			status["last_error"] = last.ErrorMessage
		}
	}
	c.JSON(http.StatusOK, status)
}

// reloadSessions aggiorna capitoli e script Lua delle sessioni avviate da entry.
// Ogni sessione riceve un bridge Lua nuovo; se gli script non si caricano
// la sessione resta sulla versione precedente.
func (s *Server) reloadSessions(entry string, result *compiler.CompileResult) {
	reloaded := 0
	for _, session := range s.sessions.withEntry(entry) {
		registry, err := s.newRegistry(result)
		if err != nil {
			s.logger.Error("script lua non ricaricati",
				zap.String("session", session.ID),
				zap.Error(err),
			)
			continue
		}
		session.reload(result.Story, registry)
		reloaded++
	}
	s.hub.Broadcast("reload", gin.H{
		"entry":     entry,
		"documents": result.Documents,
		"sessions":  reloaded,
	})
}

// broadcastWatcherEvents invia gli eventi del watcher ai client WebSocket
func (s *Server) broadcastWatcherEvents(fw *watcher.FileWatcher) {
	for event := range fw.Events() {
		s.hub.Broadcast("watch", event)
	}
}

// ============================================
// WebSocket
// ============================================

// handleWebSocket gestisce connessioni WebSocket
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("errore upgrade WebSocket", zap.Error(err))
		return
	}
	s.hub.serve(conn)
}
