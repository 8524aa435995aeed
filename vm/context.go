package vm

import (
	"sort"

	"vns-engine/parser"
)

// GlobalsKey è la chiave con cui il Context espone le variabili globali
const GlobalsKey = "vn-globals"

// Context è lo stato condiviso passato a ogni funzione nativa
type Context struct {
	custom map[string]any
}

// NewContext crea un contesto con le globali vuote
func NewContext() *Context {
	ctx := &Context{custom: make(map[string]any)}
	ctx.custom[GlobalsKey] = NewGlobals()
	return ctx
}

// Set associa un valore arbitrario a una chiave
func (c *Context) Set(key string, value any) {
	c.custom[key] = value
}

// Get restituisce il valore associato alla chiave
func (c *Context) Get(key string) (any, bool) {
	value, ok := c.custom[key]
	return value, ok
}

// Globals restituisce le variabili globali, creandole se mancano
func (c *Context) Globals() *Globals {
	if globals, ok := c.custom[GlobalsKey].(*Globals); ok {
		return globals
	}
	globals := NewGlobals()
	c.custom[GlobalsKey] = globals
	return globals
}

// ============================================
// GLOBALS
// ============================================

// Globals è la mappa nome → valore delle variabili globali
type Globals struct {
	values map[string]parser.Value
}

// NewGlobals crea uno store vuoto
func NewGlobals() *Globals {
	return &Globals{values: make(map[string]parser.Value)}
}

func (g *Globals) Get(name string) (parser.Value, bool) {
	value, ok := g.values[name]
	return value, ok
}

func (g *Globals) Set(name string, value parser.Value) {
	g.values[name] = value
}

func (g *Globals) Delete(name string) {
	delete(g.values, name)
}

func (g *Globals) Len() int {
	return len(g.values)
}

// Names restituisce i nomi in ordine alfabetico
func (g *Globals) Names() []string {
	names := make([]string, 0, len(g.values))
	for name := range g.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot restituisce una copia delle globali
func (g *Globals) Snapshot() map[string]parser.Value {
	snapshot := make(map[string]parser.Value, len(g.values))
	for name, value := range g.values {
		snapshot[name] = value
	}
	return snapshot
}

// Replace sostituisce tutte le globali con quelle indicate
func (g *Globals) Replace(values map[string]parser.Value) {
	g.values = make(map[string]parser.Value, len(values))
	for name, value := range values {
		g.values[name] = value
	}
}
