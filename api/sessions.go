package api

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"vns-engine/parser"
	"vns-engine/simulator"
	"vns-engine/vm"
)

// Session è una partita in corso: una VM con il suo stage
type Session struct {
	ID        string
	Entry     string
	CreatedAt time.Time

	mu      sync.Mutex
	machine *vm.Vm
	stage   *simulator.Stage
	steps   int
}

// SessionView è la rappresentazione JSON di una sessione
type SessionView struct {
	ID        string           `json:"id"`
	Entry     string           `json:"entry"`
	Running   bool             `json:"running"`
	Steps     int              `json:"steps"`
	Frames    []vm.Frame       `json:"frames"`
	Globals   map[string]any   `json:"globals"`
	Stage     *simulator.Stage `json:"stage"`
	CreatedAt time.Time        `json:"created_at"`
}

// view va chiamata con s.mu acquisito
func (s *Session) view() SessionView {
	globals := make(map[string]any)
	for name, value := range s.machine.Globals().Snapshot() {
		globals[name] = value.Interface()
	}
	stage := *s.stage
	stage.Characters = maps.Clone(s.stage.Characters)
	stage.Screens = slices.Clone(s.stage.Screens)
	stage.Transcript = slices.Clone(s.stage.Transcript)
	if s.stage.Dialog != nil {
		dialog := *s.stage.Dialog
		stage.Dialog = &dialog
	}
	return SessionView{
		ID:        s.ID,
		Entry:     s.Entry,
		Running:   s.machine.IsRunning(),
		Steps:     s.steps,
		Frames:    s.machine.Frames(),
		Globals:   globals,
		Stage:     &stage,
		CreatedAt: s.CreatedAt,
	}
}

// reload sostituisce capitoli e funzioni native mantenendo pila e globali
func (s *Session) reload(story *parser.Story, registry vm.FunctionRegistry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.SetRegistry(registry)
	s.machine.RemoveChapters(func(string, *parser.Chapter) bool { return true })
	s.machine.AddStory(story)
	s.stage.Story = story
}

// sessionStore contiene le sessioni aperte
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*Session)}
}

func (st *sessionStore) add(entry string, machine *vm.Vm, stage *simulator.Stage) *Session {
	session := &Session{
		ID:        uuid.NewString(),
		Entry:     entry,
		CreatedAt: time.Now().UTC(),
		machine:   machine,
		stage:     stage,
	}
	st.mu.Lock()
	st.sessions[session.ID] = session
	st.mu.Unlock()
	sessionsActive.Inc()
	return session
}

func (st *sessionStore) get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	session, ok := st.sessions[id]
	return session, ok
}

func (st *sessionStore) remove(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return false
	}
	delete(st.sessions, id)
	sessionsActive.Dec()
	return true
}

// withEntry restituisce le sessioni avviate dal file entry
func (st *sessionStore) withEntry(entry string) []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	var sessions []*Session
	for _, session := range st.sessions {
		if session.Entry == entry {
			sessions = append(sessions, session)
		}
	}
	return sessions
}
