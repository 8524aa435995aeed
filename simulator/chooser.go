package simulator

// Chooser decide quale scelta prendere quando un dialogo ne propone
type Chooser interface {
	Choose(line DialogLine) int
}

// ChooserFunc adatta una funzione all'interfaccia Chooser
type ChooserFunc func(line DialogLine) int

func (f ChooserFunc) Choose(line DialogLine) int {
	return f(line)
}

// FirstChoice sceglie sempre la prima opzione
func FirstChoice() Chooser {
	return ChooserFunc(func(DialogLine) int { return 0 })
}

// ScriptedChoices usa le scelte indicate in ordine, poi la prima opzione
func ScriptedChoices(choices ...int) Chooser {
	next := 0
	return ChooserFunc(func(DialogLine) int {
		if next >= len(choices) {
			return 0
		}
		choice := choices[next]
		next++
		return choice
	})
}

func clampChoice(choice, count int) int {
	if choice < 0 {
		return 0
	}
	if choice >= count {
		return count - 1
	}
	return choice
}
