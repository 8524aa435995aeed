package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"vns-engine/compiler"
	"vns-engine/formats"
)

// Tipi di evento emessi dal watcher
const (
	EventCreated        = "created"
	EventModified       = "modified"
	EventDeleted        = "deleted"
	EventRenamed        = "renamed"
	EventCompileSuccess = "compile_success"
	EventCompileError   = "compile_error"
)

// DefaultDebounce è l'attesa prima di ricompilare dopo l'ultima modifica
const DefaultDebounce = 500 * time.Millisecond

var watchedExtensions = map[string]bool{"vns": true, "vnz": true, "lua": true}

// FileWatcher monitora i sorgenti di una storia e la ricompila quando cambiano
type FileWatcher struct {
	watcher      *fsnotify.Watcher
	root         string
	options      compiler.CompileOptions
	debounceTime time.Duration
	onCompile    func(*compiler.CompileResult)
	logger       *zap.Logger

	mu           sync.Mutex
	watchedPaths []string
	timer        *time.Timer
	eventChan    chan WatchEvent
	stopChan     chan struct{}
	isRunning    bool
	last         *compiler.CompileResult
}

// WatchEvent rappresenta un evento del watcher
type WatchEvent struct {
	Type      string    `json:"type"`
	Path      string    `json:"path"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WatcherConfig configurazione per il watcher
type WatcherConfig struct {
	Root         string                        // radice della storia (directory)
	Options      compiler.CompileOptions       // opzioni di compilazione, Entry relativo a Root
	DebounceTime time.Duration                 // default: DefaultDebounce
	OnCompile    func(*compiler.CompileResult) // chiamata dopo ogni compilazione riuscita
	Logger       *zap.Logger
}

// NewFileWatcher crea il watcher e registra Root con tutte le sue sottocartelle
func NewFileWatcher(config WatcherConfig) (*FileWatcher, error) {
	if config.Root == "" {
		return nil, fmt.Errorf("root del watcher obbligatoria")
	}
	if config.DebounceTime <= 0 {
		config.DebounceTime = DefaultDebounce
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("errore creazione watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher:      watcher,
		root:         config.Root,
		options:      config.Options,
		debounceTime: config.DebounceTime,
		onCompile:    config.OnCompile,
		logger:       config.Logger,
		eventChan:    make(chan WatchEvent, 100),
		stopChan:     make(chan struct{}),
	}

	err = filepath.WalkDir(config.Root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return fw.AddPath(path)
		}
		return nil
	})
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("errore registrazione %s: %w", config.Root, err)
	}

	return fw, nil
}

// Start avvia il ciclo degli eventi
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.isRunning {
		return fmt.Errorf("watcher già in esecuzione")
	}
	fw.isRunning = true
	fw.logger.Info("file watcher avviato", zap.String("root", fw.root))

	go fw.loop()
	return nil
}

func (fw *FileWatcher) loop() {
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handle(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("errore watcher", zap.Error(err))

		case <-fw.stopChan:
			fw.logger.Info("file watcher fermato")
			return
		}
	}
}

func (fw *FileWatcher) handle(event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fw.AddPath(event.Name); err != nil {
				fw.logger.Warn("cartella non monitorata", zap.String("path", event.Name), zap.Error(err))
			}
			return
		}
	}
	if !IsWatchedFile(event.Name) {
		return
	}

	eventType := eventTypeOf(event.Op)
	if eventType == "" {
		return
	}
	fw.logger.Debug("file cambiato", zap.String("type", eventType), zap.String("file", filepath.Base(event.Name)))
	fw.emit(WatchEvent{Type: eventType, Path: event.Name, Timestamp: time.Now()})

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if !fw.isRunning {
		return
	}
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.debounceTime, func() {
		fw.Recompile(event.Name)
	})
}

// Stop ferma il watcher e chiude il canale degli eventi
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if !fw.isRunning {
		fw.mu.Unlock()
		return fmt.Errorf("watcher non in esecuzione")
	}

	fw.isRunning = false
	if fw.timer != nil {
		fw.timer.Stop()
	}
	close(fw.stopChan)
	close(fw.eventChan)
	fw.mu.Unlock()

	if err := fw.watcher.Close(); err != nil {
		return fmt.Errorf("errore chiusura watcher: %w", err)
	}
	return nil
}

// Events restituisce il canale degli eventi
func (fw *FileWatcher) Events() <-chan WatchEvent {
	return fw.eventChan
}

// IsRunning verifica se il watcher è attivo
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.isRunning
}

// WatchedPaths restituisce le cartelle monitorate
func (fw *FileWatcher) WatchedPaths() []string {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return append([]string(nil), fw.watchedPaths...)
}

// LastResult restituisce l'ultima compilazione eseguita (nil se nessuna)
func (fw *FileWatcher) LastResult() *compiler.CompileResult {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.last
}

// AddPath aggiunge un path da monitorare
func (fw *FileWatcher) AddPath(path string) error {
	if err := fw.watcher.Add(path); err != nil {
		return fmt.Errorf("errore aggiunta path: %w", err)
	}
	fw.mu.Lock()
	fw.watchedPaths = append(fw.watchedPaths, path)
	fw.mu.Unlock()
	fw.logger.Debug("watching", zap.String("path", path))
	return nil
}

// RemovePath rimuove un path dal monitoraggio
func (fw *FileWatcher) RemovePath(path string) error {
	if err := fw.watcher.Remove(path); err != nil {
		return fmt.Errorf("errore rimozione path: %w", err)
	}

	fw.mu.Lock()
	for i, p := range fw.watchedPaths {
		if p == path {
			fw.watchedPaths = append(fw.watchedPaths[:i], fw.watchedPaths[i+1:]...)
			break
		}
	}
	fw.mu.Unlock()

	fw.logger.Debug("stopped watching", zap.String("path", path))
	return nil
}

// Recompile ricompila l'intero pacchetto della storia.
// trigger è il file che ha causato la ricompilazione (solo per l'evento).
func (fw *FileWatcher) Recompile(trigger string) *compiler.CompileResult {
	fw.logger.Info("ricompilazione", zap.String("trigger", filepath.Base(trigger)))

	result, err := compiler.Build(os.DirFS(fw.root), fw.options, fw.logger)

	fw.mu.Lock()
	fw.last = result
	fw.mu.Unlock()

	if err != nil {
		fw.logger.Error("compilazione fallita", zap.Duration("elapsed", result.Duration), zap.Error(err))
		fw.emit(WatchEvent{Type: EventCompileError, Path: trigger, Message: err.Error(), Timestamp: time.Now()})
		return result
	}

	for _, warning := range result.Warnings {
		fw.logger.Warn(warning)
	}
	fw.logger.Info("compilato con successo",
		zap.Duration("elapsed", result.Duration),
		zap.Int("documents", len(result.Documents)),
	)
	if fw.onCompile != nil {
		fw.onCompile(result)
	}
	fw.emit(WatchEvent{
		Type:      EventCompileSuccess,
		Path:      trigger,
		Message:   fmt.Sprintf("%d capitoli", len(result.Story.Chapters)),
		Timestamp: time.Now(),
	})
	return result
}

// emit invia un evento senza bloccare; con il buffer pieno l'evento va perso
func (fw *FileWatcher) emit(event WatchEvent) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if !fw.isRunning {
		return
	}
	select {
	case fw.eventChan <- event:
	default:
		fw.logger.Warn("evento scartato", zap.String("type", event.Type))
	}
}

// IsWatchedFile verifica se il file è un sorgente della storia
func IsWatchedFile(name string) bool {
	return watchedExtensions[formats.Extension(name)]
}

func eventTypeOf(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create == fsnotify.Create:
		return EventCreated
	case op&fsnotify.Write == fsnotify.Write:
		return EventModified
	case op&fsnotify.Remove == fsnotify.Remove:
		return EventDeleted
	case op&fsnotify.Rename == fsnotify.Rename:
		return EventRenamed
	}
	return ""
}
