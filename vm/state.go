package vm

import "vns-engine/parser"

// State è ciò che serve per riprendere l'esecuzione: pila di frame e globali
type State struct {
	Frames  []Frame                 `json:"frames"`
	Globals map[string]parser.Value `json:"globals"`
}

// Snapshot cattura lo stato corrente della VM
func (vm *Vm) Snapshot() State {
	return State{
		Frames:  vm.Frames(),
		Globals: vm.Globals().Snapshot(),
	}
}

// Restore sostituisce pila e globali con quelle salvate.
// I capitoli devono essere già registrati: i frame orfani vengono scartati al primo Step.
func (vm *Vm) Restore(state State) {
	vm.frames = make([]Frame, len(state.Frames))
	copy(vm.frames, state.Frames)
	vm.Globals().Replace(state.Globals)
}
