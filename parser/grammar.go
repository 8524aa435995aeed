package parser

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// ============================================
// LEXER
// ============================================

var vnsLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//[^\n]*`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
	{Name: "Color", Pattern: `#[0-9a-fA-F]+`},
	{Name: "Number", Pattern: `[-+]?\d+(\.\d+)?([eE][-+]?\d+)?`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `[{}\[\]():,.]`},
})

// ============================================
// GRAMMATICA
// Le parole chiave sono Ident tipizzati: una stringa "true"
// tra virgolette resta testo.
// ============================================

type fileNode struct {
	Entries []*entryNode `parser:"@@*"`
}

type entryNode struct {
	Pos lexer.Position

	Import    *string      `parser:"  \"import\":Ident @String"`
	Config    *blockNode   `parser:"| \"config\":Ident @@"`
	Character *blockNode   `parser:"| \"character\":Ident @@"`
	Scene     *blockNode   `parser:"| \"scene\":Ident @@"`
	Chapter   *chapterNode `parser:"| \"chapter\":Ident @@"`
}

type blockNode struct {
	Name       string          `parser:"@Ident \"{\""`
	Properties []*propertyNode `parser:"( @@ \",\"? )* \"}\""`
}

type chapterNode struct {
	Name  string      `parser:"@Ident \"{\""`
	Items []*itemNode `parser:"( @@ \",\"? )* \"}\""`
}

type itemNode struct {
	Label  *string     `parser:"  \"label\":Ident @Ident"`
	Action *actionNode `parser:"| @@"`
}

type actionNode struct {
	Path   []string        `parser:"@Ident ( \".\" @Ident )?"`
	Params []*propertyNode `parser:"\"(\" ( @@ \",\"? )* \")\""`
}

type propertyNode struct {
	Name  string     `parser:"@( Ident | String ) \":\""`
	Value *valueNode `parser:"@@"`
}

// Number e Color restano testo grezzo: la conversione avviene in
// buildValue, che conosce la posizione del token.
type valueNode struct {
	Pos lexer.Position

	None    bool            `parser:"  @\"none\":Ident"`
	Boolean *booleanLiteral `parser:"| @( \"true\":Ident | \"false\":Ident )"`
	Number  *string         `parser:"| @Number"`
	Text    *string         `parser:"| @String"`
	Color   *string         `parser:"| @Color"`
	Array   *arrayNode      `parser:"| @@"`
	Map     *mapNode        `parser:"| @@"`
	Ident   *string         `parser:"| @Ident"`
}

// Open distingue un array vuoto da un array assente
type arrayNode struct {
	Open  bool         `parser:"@\"[\""`
	Items []*valueNode `parser:"( @@ \",\"? )* \"]\""`
}

type mapNode struct {
	Open  bool            `parser:"@\"{\""`
	Items []*propertyNode `parser:"( @@ \",\"? )* \"}\""`
}

type booleanLiteral bool

func (b *booleanLiteral) Capture(values []string) error {
	*b = booleanLiteral(values[0] == "true")
	return nil
}

// Con il lookahead massimo ogni ramo fallito viene scartato e participle
// riporta l'errore più profondo, cioè il token che ha davvero rotto il parsing.
var vnsGrammar = participle.MustBuild[fileNode](
	participle.Lexer(vnsLexer),
	participle.Elide("Comment", "Whitespace"),
	participle.Unquote("String"),
	participle.UseLookahead(participle.MaxLookahead),
)
