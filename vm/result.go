package vm

import "fmt"

// ResultKind è l'esito di controllo di un'azione
type ResultKind int

const (
	Continue ResultKind = iota
	JumpTo
	Enter
	Exit
)

func (k ResultKind) String() string {
	switch k {
	case Continue:
		return "continue"
	case JumpTo:
		return "jump_to"
	case Enter:
		return "enter"
	case Exit:
		return "exit"
	}
	return fmt.Sprintf("result(%d)", int(k))
}

// Result guida le transizioni della pila di frame.
// Chapter vuoto significa il capitolo corrente, Label vuota l'inizio del capitolo.
type Result struct {
	Kind    ResultKind `json:"kind"`
	Chapter string     `json:"chapter,omitempty"`
	Label   string     `json:"label,omitempty"`
}

func ContinueResult() Result {
	return Result{Kind: Continue}
}

func JumpResult(chapter, label string) Result {
	return Result{Kind: JumpTo, Chapter: chapter, Label: label}
}

func EnterResult(chapter, label string) Result {
	return Result{Kind: Enter, Chapter: chapter, Label: label}
}

func ExitResult() Result {
	return Result{Kind: Exit}
}

func (r Result) String() string {
	switch r.Kind {
	case JumpTo, Enter:
		return fmt.Sprintf("%s(%s#%s)", r.Kind, r.Chapter, r.Label)
	}
	return r.Kind.String()
}
