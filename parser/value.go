package parser

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Kind identifica la variante di un Value
type Kind int

const (
	KindNone Kind = iota
	KindBoolean
	KindNumber
	KindText
	KindColor
	KindArray
	KindMap
)

var kindNames = [...]string{"none", "boolean", "number", "text", "color", "array", "map"}

// String restituisce il nome della variante
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// parseKind converte il nome di una variante nel suo Kind
func parseKind(name string) (Kind, bool) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), true
		}
	}
	return KindNone, false
}

// Value rappresenta un valore dello script.
// Lo zero value è None.
type Value struct {
	kind    Kind
	boolean bool
	number  float64
	text    string
	color   uint32
	array   []Value
	items   map[string]Value
}

// None crea il valore vuoto
func None() Value {
	return Value{}
}

// Boolean crea un valore booleano
func Boolean(value bool) Value {
	return Value{kind: KindBoolean, boolean: value}
}

// Number crea un valore numerico
func Number(value float64) Value {
	return Value{kind: KindNumber, number: value}
}

// Text crea un valore testuale
func Text(value string) Value {
	return Value{kind: KindText, text: value}
}

// Color crea un colore RGBA impacchettato
func Color(value uint32) Value {
	return Value{kind: KindColor, color: value}
}

// Array crea un array di valori
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, array: items}
}

// Map crea una mappa nome → valore
func Map(items map[string]Value) Value {
	if items == nil {
		items = map[string]Value{}
	}
	return Value{kind: KindMap, items: items}
}

// Kind restituisce la variante del valore
func (v Value) Kind() Kind {
	return v.kind
}

// IsNone verifica se il valore è None
func (v Value) IsNone() bool {
	return v.kind == KindNone
}

func (v Value) AsBoolean() (bool, bool) {
	return v.boolean, v.kind == KindBoolean
}

func (v Value) AsNumber() (float64, bool) {
	return v.number, v.kind == KindNumber
}

func (v Value) AsText() (string, bool) {
	return v.text, v.kind == KindText
}

func (v Value) AsColor() (uint32, bool) {
	return v.color, v.kind == KindColor
}

// AsArray restituisce gli elementi senza copiarli
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.array, true
}

// AsMap restituisce la mappa senza copiarla
func (v Value) AsMap() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.items, true
}

// IsSameType confronta solo la variante, ignorando il contenuto
func (v Value) IsSameType(other Value) bool {
	return v.kind == other.kind
}

// Equal confronta variante e contenuto in modo ricorsivo
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNone:
		return true
	case KindBoolean:
		return v.boolean == other.boolean
	case KindNumber:
		return v.number == other.number
	case KindText:
		return v.text == other.text
	case KindColor:
		return v.color == other.color
	case KindArray:
		if len(v.array) != len(other.array) {
			return false
		}
		for i := range v.array {
			if !v.array[i].Equal(other.array[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.items) != len(other.items) {
			return false
		}
		for key, value := range v.items {
			found, ok := other.items[key]
			if !ok || !value.Equal(found) {
				return false
			}
		}
		return true
	}
	return false
}

// Contains verifica se un array contiene un elemento uguale a item
func (v Value) Contains(item Value) bool {
	for _, element := range v.array {
		if element.Equal(item) {
			return true
		}
	}
	return false
}

// Interface converte il valore in tipi Go semplici (nil, bool, float64, string, []any, map[string]any).
// I colori diventano stringhe "#rrggbbaa".
func (v Value) Interface() any {
	switch v.kind {
	case KindBoolean:
		return v.boolean
	case KindNumber:
		return v.number
	case KindText:
		return v.text
	case KindColor:
		return FormatColor(v.color)
	case KindArray:
		result := make([]any, len(v.array))
		for i, item := range v.array {
			result[i] = item.Interface()
		}
		return result
	case KindMap:
		result := make(map[string]any, len(v.items))
		for key, item := range v.items {
			result[key] = item.Interface()
		}
		return result
	}
	return nil
}

// String formatta il valore con la sintassi dei file .vns
func (v Value) String() string {
	switch v.kind {
	case KindBoolean:
		return strconv.FormatBool(v.boolean)
	case KindNumber:
		return strconv.FormatFloat(v.number, 'g', -1, 64)
	case KindText:
		return strconv.Quote(v.text)
	case KindColor:
		return FormatColor(v.color)
	case KindArray:
		parts := make([]string, len(v.array))
		for i, item := range v.array {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		keys := make([]string, 0, len(v.items))
		for key := range v.items {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, key := range keys {
			parts[i] = key + ": " + v.items[key].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return "none"
}

// ParseColor converte cifre esadecimali (senza '#') in un colore a 32 bit
func ParseColor(digits string) (uint32, error) {
	value, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("colore non valido %q: %w", digits, err)
	}
	return uint32(value), nil
}

// FormatColor formatta un colore come "#rrggbbaa"
func FormatColor(color uint32) string {
	return fmt.Sprintf("#%08x", color)
}

// ============================================
// JSON
// ============================================

type valueJSON struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON codifica il valore come {"type": ..., "value": ...}
// così che la variante sopravviva al round trip (es. Color contro Number).
func (v Value) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.kind {
	case KindNone:
		return json.Marshal(valueJSON{Type: v.kind.String()})
	case KindBoolean:
		payload = v.boolean
	case KindNumber:
		if math.IsNaN(v.number) || math.IsInf(v.number, 0) {
			return nil, fmt.Errorf("numero non rappresentabile in JSON: %v", v.number)
		}
		payload = v.number
	case KindText:
		payload = v.text
	case KindColor:
		payload = FormatColor(v.color)
	case KindArray:
		payload = v.array
	case KindMap:
		payload = v.items
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(valueJSON{Type: v.kind.String(), Value: raw})
}

// UnmarshalJSON decodifica il formato prodotto da MarshalJSON
func (v *Value) UnmarshalJSON(data []byte) error {
	var encoded valueJSON
	if err := json.Unmarshal(data, &encoded); err != nil {
		return err
	}
	kind, ok := parseKind(encoded.Type)
	if !ok {
		return fmt.Errorf("tipo di valore sconosciuto: %q", encoded.Type)
	}
	if kind != KindNone && len(encoded.Value) == 0 {
		return fmt.Errorf("valore %s senza contenuto", kind)
	}
	switch kind {
	case KindNone:
		*v = None()
	case KindBoolean:
		var b bool
		if err := json.Unmarshal(encoded.Value, &b); err != nil {
			return err
		}
		*v = Boolean(b)
	case KindNumber:
		var n float64
		if err := json.Unmarshal(encoded.Value, &n); err != nil {
			return err
		}
		*v = Number(n)
	case KindText:
		var s string
		if err := json.Unmarshal(encoded.Value, &s); err != nil {
			return err
		}
		*v = Text(s)
	case KindColor:
		var s string
		if err := json.Unmarshal(encoded.Value, &s); err != nil {
			return err
		}
		color, err := ParseColor(strings.TrimPrefix(s, "#"))
		if err != nil {
			return err
		}
		*v = Color(color)
	case KindArray:
		var items []Value
		if err := json.Unmarshal(encoded.Value, &items); err != nil {
			return err
		}
		*v = Array(items...)
	case KindMap:
		var items map[string]Value
		if err := json.Unmarshal(encoded.Value, &items); err != nil {
			return err
		}
		*v = Map(items)
	}
	return nil
}
