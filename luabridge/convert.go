package luabridge

import (
	"strconv"

	"github.com/Shopify/go-lua"

	"vns-engine/parser"
)

// maxDepth limita la conversione di tabelle che contengono se stesse
const maxDepth = 32

// pushValue mette sullo stack il valore convertito. I colori diventano numeri.
func pushValue(state *lua.State, value parser.Value) {
	switch value.Kind() {
	case parser.KindBoolean:
		b, _ := value.AsBoolean()
		state.PushBoolean(b)
	case parser.KindNumber:
		n, _ := value.AsNumber()
		state.PushNumber(n)
	case parser.KindText:
		s, _ := value.AsText()
		state.PushString(s)
	case parser.KindColor:
		c, _ := value.AsColor()
		state.PushNumber(float64(c))
	case parser.KindArray:
		items, _ := value.AsArray()
		state.CreateTable(len(items), 0)
		for i, item := range items {
			pushValue(state, item)
			state.RawSetInt(-2, i+1)
		}
	case parser.KindMap:
		fields, _ := value.AsMap()
		state.CreateTable(0, len(fields))
		for key, item := range fields {
			pushValue(state, item)
			state.SetField(-2, key)
		}
	default:
		state.PushNil()
	}
}

// toValue converte il valore Lua all'indice dato
func toValue(state *lua.State, index int) parser.Value {
	return convert(state, index, 0)
}

func convert(state *lua.State, index, depth int) parser.Value {
	switch state.TypeOf(index) {
	case lua.TypeBoolean:
		return parser.Boolean(state.ToBoolean(index))
	case lua.TypeNumber:
		n, _ := state.ToNumber(index)
		return parser.Number(n)
	case lua.TypeString:
		s, _ := state.ToString(index)
		return parser.Text(s)
	case lua.TypeTable:
		if depth >= maxDepth {
			return parser.None()
		}
		return convertTable(state, index, depth+1)
	}
	return parser.None()
}

// convertTable produce un Array se le chiavi sono 1..n, altrimenti una Map.
// Una tabella vuota diventa un Array vuoto.
func convertTable(state *lua.State, index, depth int) parser.Value {
	index = state.AbsIndex(index)
	items := make(map[int]parser.Value)
	fields := make(map[string]parser.Value)

	state.PushNil()
	for state.Next(index) {
		switch state.TypeOf(-2) {
		case lua.TypeNumber:
			if key, ok := state.ToInteger(-2); ok {
				items[key] = convert(state, -1, depth)
			}
		case lua.TypeString:
			key, _ := state.ToString(-2)
			fields[key] = convert(state, -1, depth)
		}
		state.Pop(1)
	}

	if len(fields) == 0 && isSequence(items) {
		array := make([]parser.Value, len(items))
		for key, item := range items {
			array[key-1] = item
		}
		return parser.Array(array...)
	}

	for key, item := range items {
		fields[strconv.Itoa(key)] = item
	}
	return parser.Map(fields)
}

func isSequence(items map[int]parser.Value) bool {
	for i := 1; i <= len(items); i++ {
		if _, ok := items[i]; !ok {
			return false
		}
	}
	return true
}
