package parser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStory = `
// storia di prova
import "common.vns"
import "characters.vns"
import "common.vns"

config application {
	title: "La Prova"
	entry: start
	width: 1280
}

character alice {
	name: "Alice"
	color: #ff8800ff
	moods: [happy, sad]
}

scene park {
	background: "park.png"
	tint: { r: 0.5, g: -1, visible: true, extra: none }
}

chapter start {
	label intro
	vn_dialog.say(who: alice, what: "Ciao \"mondo\"\n")
	set_global(name: "score", value: 5)
	jump(label: intro, global: score, less_than: 3)
	label end
}
`

// ============================================
// Test: documento completo
// ============================================

func TestParseDocument(t *testing.T) {
	doc, err := Parse("main.vns", sampleStory)
	require.NoError(t, err)

	assert.Equal(t, []string{"common.vns", "characters.vns"}, doc.Dependencies)
	require.Contains(t, doc.Story.Configs, "application")
	require.Contains(t, doc.Story.Characters, "alice")
	require.Contains(t, doc.Story.Scenes, "park")
	require.Contains(t, doc.Story.Chapters, "start")

	app := doc.Story.Configs["application"].Properties
	assert.Equal(t, "La Prova", app.Text("title", ""))
	assert.True(t, app.Get("entry").Equal(Text("start")))
	assert.Equal(t, 1280.0, app.Number("width", 0))

	alice := doc.Story.Characters["alice"].Properties
	color, ok := alice.Get("color").AsColor()
	require.True(t, ok)
	assert.Equal(t, uint32(0xff8800ff), color)
	assert.True(t, alice.Get("moods").Equal(Array(Text("happy"), Text("sad"))))

	tint := doc.Story.Scenes["park"].Properties.Get("tint")
	assert.True(t, tint.Equal(Map(map[string]Value{
		"r":       Number(0.5),
		"g":       Number(-1),
		"visible": Boolean(true),
		"extra":   None(),
	})))

	t.Logf("✅ Documento parsato: %d dipendenze", len(doc.Dependencies))
}

func TestParseChapterItems(t *testing.T) {
	doc, err := Parse("main.vns", sampleStory)
	require.NoError(t, err)

	items := doc.Story.Chapters["start"].Items
	require.Len(t, items, 5)

	assert.Equal(t, LabelItem("intro"), items[0])

	say := items[1].Action
	require.NotNil(t, say)
	assert.Equal(t, "say", say.Name)
	assert.Equal(t, "vn_dialog", say.Namespace)
	assert.True(t, say.Params["who"].Equal(Text("alice")))
	assert.True(t, say.Params["what"].Equal(Text("Ciao \"mondo\"\n")))

	setGlobal := items[2].Action
	assert.Equal(t, "set_global", setGlobal.Name)
	assert.Empty(t, setGlobal.Namespace)
	assert.True(t, setGlobal.Params["value"].Equal(Number(5)))

	jump := items[3].Action
	assert.True(t, jump.Params["less_than"].Equal(Number(3)))
	assert.Equal(t, "jump(...)", items[3].String())

	assert.Equal(t, ItemLabel, items[4].Kind)
	assert.Equal(t, "end", items[4].Label)

	index, ok := doc.Story.Chapters["start"].FindLabel("end")
	assert.True(t, ok)
	assert.Equal(t, 4, index)
}

// ============================================
// Test: letterali
// ============================================

func TestParseLiterals(t *testing.T) {
	tests := []struct {
		name     string
		literal  string
		expected Value
	}{
		{"none", "none", None()},
		{"true", "true", Boolean(true)},
		{"false", "false", Boolean(false)},
		{"intero", "42", Number(42)},
		{"decimale negativo", "-3.25", Number(-3.25)},
		{"esponente", "1e3", Number(1000)},
		{"testo", `"ciao"`, Text("ciao")},
		{"testo parola chiave", `"true"`, Text("true")},
		{"identificatore", "happy", Text("happy")},
		{"colore", "#1a2b3c4d", Color(0x1a2b3c4d)},
		{"array vuoto", "[]", Array()},
		{"array annidato", "[1, [2], {a: 3}]", Array(Number(1), Array(Number(2)), Map(map[string]Value{"a": Number(3)}))},
		{"mappa vuota", "{}", Map(nil)},
		{"mappa senza virgole", `{a: 1 b: "x"}`, Map(map[string]Value{"a": Number(1), "b": Text("x")})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse("literal.vns", "scene s { value: "+tt.literal+" }")
			require.NoError(t, err)
			got := doc.Story.Scenes["s"].Properties.Get("value")
			assert.True(t, got.Equal(tt.expected), "atteso %s, ottenuto %s", tt.expected, got)
		})
	}
}

func TestParseBareActionAndLabelNamedAction(t *testing.T) {
	doc, err := Parse("x.vns", `chapter c { exit() label(name: "x") }`)
	require.NoError(t, err)

	items := doc.Story.Chapters["c"].Items
	require.Len(t, items, 2)
	assert.Equal(t, "exit", items[0].Action.Name)
	assert.Empty(t, items[0].Action.Params)
	assert.Equal(t, "label", items[1].Action.Name)
}

func TestParseDuplicateImportsCollapse(t *testing.T) {
	doc, err := Parse("x.vns", `import "a.vns" import "b.vns" import "a.vns" import "c.vns"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.vns", "b.vns", "c.vns"}, doc.Dependencies)
}

// ============================================
// Test: errori
// ============================================

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse("broken.vns", "chapter start {\n\tsay(what: \"ciao\"\n}")
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "broken.vns", perr.Filename)
	assert.Equal(t, 3, perr.Line)
	assert.NotEmpty(t, perr.Message)

	t.Logf("✅ Errore riportato: %v", err)
}

func TestParseLiteralOutOfRangeKeepsPosition(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		column int
	}{
		{"colore troppo lungo", "  col: #123456789", 8},
		{"numero fuori intervallo", "  n: 1e999", 6},
		{"colore annidato in array", "  list: [1, #123456789]", 13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("x.vns", "config c {\n  a: 1\n"+tt.line+"\n}")
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, "x.vns", perr.Filename)
			assert.Equal(t, 3, perr.Line)
			assert.Equal(t, tt.column, perr.Column)
			assert.Contains(t, perr.Message, "non valido")

			t.Logf("✅ %v", err)
		})
	}
}

func TestParseSyntaxErrorPointsAtOffendingToken(t *testing.T) {
	_, err := Parse("x.vns", "chapter x {\n  say(what: )\n}")
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 2, perr.Line)
	assert.Equal(t, 13, perr.Column)
	assert.Contains(t, perr.Message, ")")

	// lo stesso errore dopo altre azioni valide nel capitolo
	_, err = Parse("x.vns", "chapter x {\n  a()\n  b(v: 1)\n  say(what: )\n}")
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 4, perr.Line)
	assert.Equal(t, 13, perr.Column)

	t.Logf("✅ Errore riportato: %v", err)
}

func TestParseUnknownKeyword(t *testing.T) {
	_, err := Parse("x.vns", `story foo { }`)
	require.Error(t, err)
}

func TestVnsParserReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.vns")
	require.NoError(t, os.WriteFile(path, []byte(sampleStory), 0o644))

	doc, err := NewVnsParser(path).Parse()
	require.NoError(t, err)
	assert.Equal(t, path, doc.Name)
	assert.Len(t, doc.Story.Chapters, 1)

	_, err = NewVnsParser(filepath.Join(t.TempDir(), "missing.vns")).Parse()
	assert.Error(t, err)
}

func TestStoryMergeLastWins(t *testing.T) {
	first, err := Parse("a.vns", `character alice { name: "Prima" } chapter one { }`)
	require.NoError(t, err)
	second, err := Parse("b.vns", `character alice { name: "Seconda" } chapter two { }`)
	require.NoError(t, err)

	story := NewStory()
	story.Merge(first.Story)
	story.Merge(second.Story)

	require.Len(t, story.Characters, 1)
	assert.Equal(t, "Seconda", story.Characters["alice"].Properties.Text("name", ""))
	assert.Len(t, story.Chapters, 2)
}
