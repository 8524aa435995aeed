package luabridge

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Shopify/go-lua"
	"go.uber.org/zap"

	"vns-engine/compiler"
	"vns-engine/library"
	"vns-engine/parser"
	"vns-engine/vm"
)

const resultTypeName = "vn.result"

// Bridge esegue funzioni Lua come azioni dello script.
// Le chiamate sono serializzate: un solo lua.State per bridge.
type Bridge struct {
	mu      sync.Mutex
	state   *lua.State
	current *vm.Context
	logger  *zap.Logger
}

// New crea uno stato Lua con le librerie standard e la tabella "vn"
func New(logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bridge{state: lua.NewState(), logger: logger}
	lua.OpenLibraries(b.state)

	lua.NewMetaTable(b.state, resultTypeName)
	b.state.Pop(1)

	b.state.NewTable()
	lua.SetFunctions(b.state, []lua.RegistryFunction{
		{Name: "jump_to", Function: b.jumpTo},
		{Name: "enter", Function: b.enter},
		{Name: "exit", Function: b.exit},
		{Name: "get_global", Function: b.getGlobal},
		{Name: "set_global", Function: b.setGlobal},
		{Name: "delete_global", Function: b.deleteGlobal},
		{Name: "query", Function: b.query},
	}, 0)
	b.state.SetGlobal("vn")
	return b
}

// LoadString esegue un sorgente Lua, tipicamente definizioni di funzioni
func (b *Bridge) LoadString(name, source string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := lua.LoadBuffer(b.state, source, name, "t"); err != nil {
		return fmt.Errorf("load lua %s: %w", name, err)
	}
	if err := b.state.ProtectedCall(0, 0, 0); err != nil {
		return fmt.Errorf("run lua %s: %w", name, err)
	}
	b.logger.Debug("script lua caricato", zap.String("name", name))
	return nil
}

// LoadFile esegue un file Lua dal disco
func (b *Bridge) LoadFile(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := lua.LoadFile(b.state, path, ""); err != nil {
		return fmt.Errorf("load lua %s: %w", path, err)
	}
	if err := b.state.ProtectedCall(0, 0, 0); err != nil {
		return fmt.Errorf("run lua %s: %w", path, err)
	}
	return nil
}

// LoadPackage carica tutti gli script .lua importati dal pacchetto
func (b *Bridge) LoadPackage(pkg *compiler.Package) error {
	for _, asset := range pkg.AssetsWithExtension("lua") {
		if err := b.LoadString(asset.Path, string(asset.Data)); err != nil {
			return err
		}
	}
	return nil
}

// Install registra l'azione vn.lua(name, module_name, arguments)
func (b *Bridge) Install(registry *vm.Registry) {
	registry.Add(vm.NewCheckedFunction(library.Namespace, "lua", []string{"name", "module_name", "arguments"},
		func(ctx *vm.Context, args vm.Args) (vm.Result, error) {
			name, ok := args.Text("name")
			if !ok {
				return vm.Result{}, errors.New("il parametro name deve essere testo")
			}
			module, _ := args.Text("module_name")
			return b.Call(ctx, module, name, args.Get("arguments"))
		}))
}

// Call invoca la funzione Lua name (dentro la tabella globale module, se indicata)
// passando arguments convertito in valore Lua.
// Un valore restituito da vn.jump_to, vn.enter o vn.exit diventa il Result; altrimenti Continue.
func (b *Bridge) Call(ctx *vm.Context, module, name string, arguments parser.Value) (vm.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = ctx
	defer func() { b.current = nil }()

	top := b.state.Top()
	defer b.state.SetTop(top)

	if module != "" {
		b.state.Global(module)
		if b.state.TypeOf(-1) != lua.TypeTable {
			return vm.Result{}, fmt.Errorf("modulo Lua %q non trovato", module)
		}
		b.state.Field(-1, name)
	} else {
		b.state.Global(name)
	}
	if !b.state.IsFunction(-1) {
		return vm.Result{}, fmt.Errorf("funzione Lua %q non trovata", name)
	}

	pushValue(b.state, arguments)
	if err := b.state.ProtectedCall(1, 1, 0); err != nil {
		return vm.Result{}, fmt.Errorf("errore Lua in %s: %w", name, err)
	}

	if result, ok := b.state.ToUserData(-1).(*vm.Result); ok && result != nil {
		return *result, nil
	}
	return vm.ContinueResult(), nil
}

// ============================================
// FUNZIONI ESPOSTE A LUA
// ============================================

func (b *Bridge) pushResult(state *lua.State, result vm.Result) int {
	state.PushUserData(&result)
	lua.SetMetaTableNamed(state, resultTypeName)
	return 1
}

func target(state *lua.State) (chapter, label string) {
	if state.TypeOf(1) != lua.TypeTable {
		return "", ""
	}
	state.Field(1, "chapter")
	chapter, _ = state.ToString(-1)
	state.Pop(1)
	state.Field(1, "label")
	label, _ = state.ToString(-1)
	state.Pop(1)
	return chapter, label
}

func (b *Bridge) jumpTo(state *lua.State) int {
	chapter, label := target(state)
	return b.pushResult(state, vm.JumpResult(chapter, label))
}

func (b *Bridge) enter(state *lua.State) int {
	chapter, label := target(state)
	return b.pushResult(state, vm.EnterResult(chapter, label))
}

func (b *Bridge) exit(state *lua.State) int {
	return b.pushResult(state, vm.ExitResult())
}

func (b *Bridge) globals(state *lua.State) *vm.Globals {
	if b.current == nil {
		lua.Errorf(state, "nessuna VM attiva")
	}
	return b.current.Globals()
}

func (b *Bridge) getGlobal(state *lua.State) int {
	name := lua.CheckString(state, 1)
	value, ok := b.globals(state).Get(name)
	if !ok {
		state.PushNil()
		return 1
	}
	pushValue(state, value)
	return 1
}

func (b *Bridge) setGlobal(state *lua.State) int {
	name := lua.CheckString(state, 1)
	b.globals(state).Set(name, toValue(state, 2))
	return 0
}

func (b *Bridge) deleteGlobal(state *lua.State) int {
	name := lua.CheckString(state, 1)
	b.globals(state).Delete(name)
	return 0
}

// query(name, {equals = ..., less_than = ...}) applica le stesse clausole di jump/enter/exit
func (b *Bridge) query(state *lua.State) int {
	name := lua.CheckString(state, 1)
	clauses := toValue(state, 2)
	fields, _ := clauses.AsMap()
	args := make(vm.Args, len(fields))
	for key, value := range fields {
		args[key] = value
	}
	state.PushBoolean(library.Gate(b.globals(state), parser.Text(name), library.QueryFromArgs(args)))
	return 1
}
