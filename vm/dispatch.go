package vm

import (
	"fmt"

	"vns-engine/parser"
)

// FunctionRegistry è ciò che serve al dispatcher per risolvere le azioni
type FunctionRegistry interface {
	Find(name, namespace string) (Callable, bool)
}

// DispatchError indica un'azione che non può essere eseguita.
// È un errore di configurazione: lo script e le funzioni registrate non combaciano.
type DispatchError struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Reason    string `json:"reason"`
	Err       error  `json:"-"`
}

func (e *DispatchError) Error() string {
	path := e.Name
	if e.Namespace != "" {
		path = e.Namespace + "." + e.Name
	}
	if e.Err != nil {
		return fmt.Sprintf("azione %s: %s: %v", path, e.Reason, e.Err)
	}
	return fmt.Sprintf("azione %s: %s", path, e.Reason)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Evaluate risolve ed esegue un'azione restituendo il suo Result
func Evaluate(action *parser.Action, registry FunctionRegistry, ctx *Context) (Result, error) {
	fail := func(reason string, err error) (Result, error) {
		return Result{}, &DispatchError{Namespace: action.Namespace, Name: action.Name, Reason: reason, Err: err}
	}

	fn, ok := registry.Find(action.Name, action.Namespace)
	if !ok {
		return fail("funzione non trovata", nil)
	}

	signature := fn.Signature()
	if len(signature.Outputs) != 1 {
		return fail(fmt.Sprintf("attesa esattamente una uscita, dichiarate %d", len(signature.Outputs)), nil)
	}
	if signature.Outputs[0].Type != TypeResult {
		return fail(fmt.Sprintf("l'uscita deve essere di tipo %s, dichiarata %s", TypeResult, signature.Outputs[0].Type), nil)
	}

	args := make([]parser.Value, len(signature.Inputs))
	for i, input := range signature.Inputs {
		if input.Type != TypeValue {
			return fail(fmt.Sprintf("l'ingresso %q deve essere di tipo %s, dichiarato %s", input.Name, TypeValue, input.Type), nil)
		}
		args[i] = action.Params[input.Name]
	}

	outputs, err := fn.Invoke(ctx, args)
	if err != nil {
		return fail("invocazione fallita", err)
	}
	if len(outputs) != 1 {
		return fail(fmt.Sprintf("attesa una sola uscita, restituite %d", len(outputs)), nil)
	}
	result, ok := outputs[0].(Result)
	if !ok {
		return fail(fmt.Sprintf("uscita di tipo %T invece di Result", outputs[0]), nil)
	}
	return result, nil
}
