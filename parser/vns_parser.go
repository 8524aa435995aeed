package parser

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/participle/v2"
)

// ParseError descrive il primo errore di sintassi trovato
type ParseError struct {
	Filename string `json:"filename"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Message  string `json:"message"`
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Filename, e.Line, e.Column, e.Message)
}

// VnsParser gestisce il parsing dei file .vns
type VnsParser struct {
	filepath string
}

// NewVnsParser crea un nuovo parser
func NewVnsParser(filepath string) *VnsParser {
	return &VnsParser{filepath: filepath}
}

// Parse legge e parsa il file .vns
func (vp *VnsParser) Parse() (*Document, error) {
	content, err := os.ReadFile(vp.filepath)
	if err != nil {
		return nil, fmt.Errorf("errore apertura file: %w", err)
	}
	return ParseBytes(vp.filepath, content)
}

// Parse converte un testo .vns in un Document
func Parse(name, content string) (*Document, error) {
	return ParseBytes(name, []byte(content))
}

// ParseBytes converte il contenuto di un file .vns in un Document.
// Il parsing si ferma al primo errore.
func ParseBytes(name string, content []byte) (*Document, error) {
	tree, err := vnsGrammar.ParseBytes(name, content)
	if err != nil {
		return nil, toParseError(name, err)
	}

	doc := &Document{
		Name:         name,
		Dependencies: []string{},
		Story:        NewStory(),
		ParsedAt:     time.Now(),
	}

	for _, entry := range tree.Entries {
		switch {
		case entry.Import != nil:
			doc.addDependency(*entry.Import)
		case entry.Config != nil:
			properties, err := buildProperties(name, entry.Config.Properties)
			if err != nil {
				return nil, err
			}
			doc.Story.Configs[entry.Config.Name] = &Config{Properties: properties}
		case entry.Character != nil:
			properties, err := buildProperties(name, entry.Character.Properties)
			if err != nil {
				return nil, err
			}
			doc.Story.Characters[entry.Character.Name] = &Character{Properties: properties}
		case entry.Scene != nil:
			properties, err := buildProperties(name, entry.Scene.Properties)
			if err != nil {
				return nil, err
			}
			doc.Story.Scenes[entry.Scene.Name] = &Scene{Properties: properties}
		case entry.Chapter != nil:
			chapter, err := buildChapter(name, entry.Chapter)
			if err != nil {
				return nil, err
			}
			doc.Story.Chapters[entry.Chapter.Name] = chapter
		default:
			return nil, &ParseError{
				Filename: name,
				Line:     entry.Pos.Line,
				Column:   entry.Pos.Column,
				Message:  "elemento non supportato",
			}
		}
	}

	return doc, nil
}

func toParseError(name string, err error) error {
	var perr participle.Error
	if errors.As(err, &perr) {
		pos := perr.Position()
		filename := pos.Filename
		if filename == "" {
			filename = name
		}
		return &ParseError{
			Filename: filename,
			Line:     pos.Line,
			Column:   pos.Column,
			Message:  perr.Message(),
		}
	}
	return &ParseError{Filename: name, Message: err.Error()}
}

func buildChapter(name string, node *chapterNode) (*Chapter, error) {
	chapter := &Chapter{Items: make([]ChapterItem, 0, len(node.Items))}
	for _, item := range node.Items {
		if item.Label != nil {
			chapter.Items = append(chapter.Items, LabelItem(*item.Label))
			continue
		}
		action, err := buildAction(name, item.Action)
		if err != nil {
			return nil, err
		}
		chapter.Items = append(chapter.Items, ActionItem(action))
	}
	return chapter, nil
}

func buildAction(name string, node *actionNode) (*Action, error) {
	params, err := buildProperties(name, node.Params)
	if err != nil {
		return nil, err
	}
	action := &Action{Params: params}
	if len(node.Path) == 2 {
		action.Namespace = node.Path[0]
		action.Name = node.Path[1]
	} else {
		action.Name = node.Path[0]
	}
	return action, nil
}

func buildProperties(name string, nodes []*propertyNode) (Properties, error) {
	properties := make(Properties, len(nodes))
	for _, node := range nodes {
		value, err := buildValue(name, node.Value)
		if err != nil {
			return nil, err
		}
		properties[node.Name] = value
	}
	return properties, nil
}

// buildValue converte un nodo in Value. Numeri e colori fuori
// intervallo diventano errori di sintassi alla posizione del letterale.
func buildValue(name string, node *valueNode) (Value, error) {
	switch {
	case node.None:
		return None(), nil
	case node.Boolean != nil:
		return Boolean(bool(*node.Boolean)), nil
	case node.Number != nil:
		number, err := strconv.ParseFloat(*node.Number, 64)
		if err != nil {
			return Value{}, literalError(name, node, fmt.Sprintf("numero non valido %q", *node.Number))
		}
		return Number(number), nil
	case node.Text != nil:
		return Text(*node.Text), nil
	case node.Color != nil:
		color, err := ParseColor(strings.TrimPrefix(*node.Color, "#"))
		if err != nil {
			return Value{}, literalError(name, node, fmt.Sprintf("colore non valido %q", *node.Color))
		}
		return Color(color), nil
	case node.Array != nil:
		items := make([]Value, len(node.Array.Items))
		for i, item := range node.Array.Items {
			value, err := buildValue(name, item)
			if err != nil {
				return Value{}, err
			}
			items[i] = value
		}
		return Array(items...), nil
	case node.Map != nil:
		properties, err := buildProperties(name, node.Map.Items)
		if err != nil {
			return Value{}, err
		}
		return Map(properties), nil
	case node.Ident != nil:
		return Text(*node.Ident), nil
	}
	return None(), nil
}

func literalError(name string, node *valueNode, message string) *ParseError {
	filename := node.Pos.Filename
	if filename == "" {
		filename = name
	}
	return &ParseError{
		Filename: filename,
		Line:     node.Pos.Line,
		Column:   node.Pos.Column,
		Message:  message,
	}
}
