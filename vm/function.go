package vm

import (
	"fmt"
	"sync"

	"vns-engine/parser"
)

// ParamType è il tipo dichiarato di un ingresso o di un'uscita
type ParamType string

const (
	TypeValue  ParamType = "value"
	TypeResult ParamType = "result"
)

// Param è un parametro con nome della firma
type Param struct {
	Name string    `json:"name"`
	Type ParamType `json:"type"`
}

// Signature descrive ingressi e uscite di una funzione
type Signature struct {
	Inputs  []Param `json:"inputs"`
	Outputs []Param `json:"outputs"`
}

// Callable è una funzione nativa invocabile dalle azioni
type Callable interface {
	Name() string
	Namespace() string
	Signature() Signature
	// Invoke riceve gli argomenti nello stesso ordine di Signature().Inputs
	Invoke(ctx *Context, args []parser.Value) ([]any, error)
}

// Args sono gli argomenti di una funzione indicizzati per nome
type Args map[string]parser.Value

// Get restituisce l'argomento, None se assente
func (a Args) Get(name string) parser.Value {
	return a[name]
}

// Text restituisce l'argomento come testo
func (a Args) Text(name string) (string, bool) {
	return a[name].AsText()
}

type function struct {
	namespace string
	name      string
	signature Signature
	invoke    func(ctx *Context, args []parser.Value) ([]any, error)
}

func (f *function) Name() string         { return f.name }
func (f *function) Namespace() string    { return f.namespace }
func (f *function) Signature() Signature { return f.signature }

func (f *function) Invoke(ctx *Context, args []parser.Value) ([]any, error) {
	return f.invoke(ctx, args)
}

// NewFunction crea una funzione con ingressi di tipo value e una sola uscita Result
func NewFunction(namespace, name string, inputs []string, body func(ctx *Context, args Args) Result) Callable {
	return NewCheckedFunction(namespace, name, inputs, func(ctx *Context, args Args) (Result, error) {
		return body(ctx, args), nil
	})
}

// NewCheckedFunction è come NewFunction ma il corpo può fallire
func NewCheckedFunction(namespace, name string, inputs []string, body func(ctx *Context, args Args) (Result, error)) Callable {
	signature := Signature{Outputs: []Param{{Name: "result", Type: TypeResult}}}
	for _, input := range inputs {
		signature.Inputs = append(signature.Inputs, Param{Name: input, Type: TypeValue})
	}
	return &function{
		namespace: namespace,
		name:      name,
		signature: signature,
		invoke: func(ctx *Context, values []parser.Value) ([]any, error) {
			args := make(Args, len(inputs))
			for i, input := range inputs {
				if i < len(values) {
					args[input] = values[i]
				}
			}
			result, err := body(ctx, args)
			if err != nil {
				return nil, err
			}
			return []any{result}, nil
		},
	}
}

// NewRawFunction crea una funzione con firma arbitraria
func NewRawFunction(namespace, name string, signature Signature, invoke func(ctx *Context, args []parser.Value) ([]any, error)) Callable {
	return &function{namespace: namespace, name: name, signature: signature, invoke: invoke}
}

// ============================================
// REGISTRY
// ============================================

// Registry mantiene le funzioni native registrate, in ordine di registrazione
type Registry struct {
	mu        sync.RWMutex
	functions []Callable
}

// NewRegistry crea un registry vuoto
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registra una funzione, sostituendo quella con stesso namespace e nome
func (r *Registry) Add(fn Callable) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.functions {
		if existing.Namespace() == fn.Namespace() && existing.Name() == fn.Name() {
			r.functions[i] = fn
			return
		}
	}
	r.functions = append(r.functions, fn)
}

// Find cerca una funzione per nome.
// Un namespace vuoto accetta qualsiasi namespace: vince la prima registrata.
func (r *Registry) Find(name, namespace string) (Callable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, fn := range r.functions {
		if fn.Name() != name {
			continue
		}
		if namespace == "" || fn.Namespace() == namespace {
			return fn, true
		}
	}
	return nil, false
}

// Functions restituisce le funzioni registrate
func (r *Registry) Functions() []Callable {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Callable, len(r.functions))
	copy(result, r.functions)
	return result
}

// Describe restituisce "namespace.nome" per ogni funzione registrata
func (r *Registry) Describe() []string {
	functions := r.Functions()
	names := make([]string, len(functions))
	for i, fn := range functions {
		names[i] = fmt.Sprintf("%s.%s", fn.Namespace(), fn.Name())
	}
	return names
}
