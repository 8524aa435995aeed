package compiler

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"go.uber.org/zap"

	"vns-engine/formats"
	_ "vns-engine/formats/archive"
	_ "vns-engine/formats/vns"
	"vns-engine/parser"
)

// DefaultEntryChapter è il capitolo iniziale quando la config non ne indica uno
const DefaultEntryChapter = "start"

// AppConfig contiene i valori del blocco "config application"
type AppConfig struct {
	Title  string  `json:"title"`
	Entry  string  `json:"entry"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	FPS    float64 `json:"fps,omitempty"`
}

// ApplicationConfig legge la config "application" della storia
func ApplicationConfig(story *parser.Story) AppConfig {
	config := AppConfig{Title: "", Entry: DefaultEntryChapter}
	app, ok := story.Configs["application"]
	if !ok {
		return config
	}
	config.Title = app.Properties.Text("title", config.Title)
	config.Entry = app.Properties.Text("entry", config.Entry)
	config.Width = app.Properties.Number("width", 0)
	config.Height = app.Properties.Number("height", 0)
	config.FPS = app.Properties.Number("fps", 0)
	return config
}

// CompileOptions opzioni per la compilazione
type CompileOptions struct {
	Entry      string // file iniziale, relativo alla radice
	StartNode  string // capitolo iniziale (sovrascrive la config)
	StrictMode bool   // richiede che il capitolo iniziale esista
}

// CompileResult risultato della compilazione
type CompileResult struct {
	Success      bool               `json:"success"`
	Story        *parser.Story      `json:"story,omitempty"`
	App          AppConfig          `json:"app"`
	Documents    []string           `json:"documents"`
	Assets       []string           `json:"assets"`
	ErrorMessage string             `json:"error_message,omitempty"`
	ParseError   *parser.ParseError `json:"parse_error,omitempty"`
	Warnings     []string           `json:"warnings"`
	Duration     time.Duration      `json:"duration"`

	Package *Package `json:"-"`
}

// Build carica e compila la storia che parte da options.Entry dentro fsys
func Build(fsys fs.FS, options CompileOptions, logger *zap.Logger) (*CompileResult, error) {
	start := time.Now()
	result := &CompileResult{Warnings: []string{}}
	defer func() { result.Duration = time.Since(start) }()

	pkg, err := Load(options.Entry, formats.NewDefaultProvider(fsys), logger)
	if err != nil {
		result.ErrorMessage = err.Error()
		var perr *parser.ParseError
		if errors.As(err, &perr) {
			result.ParseError = perr
		}
		return result, fmt.Errorf("compilazione fallita: %w", err)
	}

	result.Package = pkg
	result.Story = pkg.Compile()
	result.App = ApplicationConfig(result.Story)
	result.Documents = pkg.Order()
	for _, asset := range pkg.Assets {
		result.Assets = append(result.Assets, asset.Path)
	}
	if options.StartNode != "" {
		result.App.Entry = options.StartNode
	}

	if _, ok := result.Story.Chapters[result.App.Entry]; !ok {
		message := fmt.Sprintf("capitolo iniziale %q non trovato", result.App.Entry)
		if options.StrictMode {
			result.ErrorMessage = message
			return result, fmt.Errorf("compilazione fallita: %s", message)
		}
		result.Warnings = append(result.Warnings, message)
	}
	if len(result.Story.Chapters) == 0 {
		result.Warnings = append(result.Warnings, "la storia non contiene capitoli")
	}

	result.Success = true
	return result, nil
}
