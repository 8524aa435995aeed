package parser

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleValues() []Value {
	return []Value{
		None(),
		Boolean(true),
		Number(3.5),
		Text("ciao"),
		Color(0x1a2b3c4d),
		Array(Number(1), Text("a")),
		Map(map[string]Value{"x": Boolean(false)}),
	}
}

func TestIsSameType(t *testing.T) {
	values := sampleValues()
	for i, a := range values {
		assert.True(t, a.IsSameType(a), "%s deve avere lo stesso tipo di se stesso", a)
		for j, b := range values {
			if i != j {
				assert.False(t, a.IsSameType(b), "%s e %s", a, b)
			}
		}
	}

	assert.True(t, Number(1).IsSameType(Number(2)))
	assert.True(t, None().IsSameType(Value{}))
	assert.False(t, None().IsSameType(Text("")))
}

func TestEqualIsStructural(t *testing.T) {
	assert.True(t, Array(Number(1), Map(map[string]Value{"a": Text("b")})).
		Equal(Array(Number(1), Map(map[string]Value{"a": Text("b")}))))
	assert.False(t, Array(Number(1)).Equal(Array(Number(1), Number(2))))
	assert.False(t, Map(map[string]Value{"a": None()}).Equal(Map(map[string]Value{"b": None()})))
	assert.False(t, Number(1).Equal(Text("1")))
	assert.False(t, Color(1).Equal(Number(1)))
}

func TestAccessorsNeverPanic(t *testing.T) {
	v := Text("ciao")

	_, ok := v.AsNumber()
	assert.False(t, ok)
	_, ok = v.AsArray()
	assert.False(t, ok)
	_, ok = v.AsMap()
	assert.False(t, ok)

	text, ok := v.AsText()
	assert.True(t, ok)
	assert.Equal(t, "ciao", text)
	assert.False(t, v.IsNone())
	assert.True(t, Value{}.IsNone())
}

func TestParseColor(t *testing.T) {
	color, err := ParseColor("1a2b3c4d")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1a2b3c4d), color)

	_, err = ParseColor("1a2b3c4d5")
	assert.Error(t, err)
	_, err = ParseColor("zz")
	assert.Error(t, err)
}

func TestValueJSONKeepsVariant(t *testing.T) {
	for _, value := range sampleValues() {
		data, err := json.Marshal(value)
		require.NoError(t, err)

		var decoded Value
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.True(t, value.Equal(decoded), "%s → %s", value, data)
	}

	var v Value
	assert.Error(t, json.Unmarshal([]byte(`{"type":"strano"}`), &v))
}

func TestValueInterface(t *testing.T) {
	value := Map(map[string]Value{
		"list":  Array(Number(1), Boolean(true)),
		"color": Color(0xff0000ff),
	})
	assert.Equal(t, map[string]any{
		"list":  []any{1.0, true},
		"color": "#ff0000ff",
	}, value.Interface())
	assert.Equal(t, `{color: #ff0000ff, list: [1, true]}`, value.String())
}
