package library

import (
	"vns-engine/parser"
	"vns-engine/vm"
)

// Query raccoglie le clausole di una condizione su una variabile globale.
// Le clausole None vengono ignorate.
type Query struct {
	IsType      parser.Value
	Equals      parser.Value
	NotEquals   parser.Value
	LessThan    parser.Value
	GreaterThan parser.Value
	HasItems    parser.Value
}

// QueryInputs sono i nomi dei parametri che compongono una Query
var QueryInputs = []string{"is_type", "equals", "not_equals", "less_than", "greater_than", "has_items"}

// QueryFromArgs legge le clausole dagli argomenti di un'azione
func QueryFromArgs(args vm.Args) Query {
	return Query{
		IsType:      args.Get("is_type"),
		Equals:      args.Get("equals"),
		NotEquals:   args.Get("not_equals"),
		LessThan:    args.Get("less_than"),
		GreaterThan: args.Get("greater_than"),
		HasItems:    args.Get("has_items"),
	}
}

// Validate verifica che tutte le clausole presenti valgano per value.
// Confronti tra tipi incompatibili valgono false, mai errore.
func (q Query) Validate(value parser.Value) bool {
	if !q.IsType.IsNone() && !value.IsSameType(q.IsType) {
		return false
	}
	if !q.Equals.IsNone() && !value.Equal(q.Equals) {
		return false
	}
	if !q.NotEquals.IsNone() && value.Equal(q.NotEquals) {
		return false
	}
	if !q.LessThan.IsNone() && !compareNumbers(value, q.LessThan, func(a, b float64) bool { return a < b }) {
		return false
	}
	if !q.GreaterThan.IsNone() && !compareNumbers(value, q.GreaterThan, func(a, b float64) bool { return a > b }) {
		return false
	}
	if !q.HasItems.IsNone() && !hasItems(value, q.HasItems) {
		return false
	}
	return true
}

func compareNumbers(value, other parser.Value, compare func(a, b float64) bool) bool {
	a, ok := value.AsNumber()
	if !ok {
		return false
	}
	b, ok := other.AsNumber()
	if !ok {
		return false
	}
	return compare(a, b)
}

func hasItems(value, query parser.Value) bool {
	if items, ok := query.AsArray(); ok {
		if _, ok := value.AsArray(); !ok {
			return false
		}
		for _, item := range items {
			if !value.Contains(item) {
				return false
			}
		}
		return true
	}

	if pairs, ok := query.AsMap(); ok {
		target, ok := value.AsMap()
		if !ok {
			return false
		}
		for key, expected := range pairs {
			found, ok := target[key]
			if !ok || !found.Equal(expected) {
				return false
			}
		}
		return true
	}
	return false
}

// Gate decide se un'azione condizionale deve scattare.
// Senza nome di globale (o con un nome non testuale) scatta sempre;
// se la globale non esiste non scatta.
func Gate(globals *vm.Globals, global parser.Value, query Query) bool {
	name, ok := global.AsText()
	if !ok {
		return true
	}
	value, exists := globals.Get(name)
	if !exists {
		return false
	}
	return query.Validate(value)
}
