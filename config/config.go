package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Modalità di avvio
const (
	ModeCheck = "check"
	ModeRun   = "run"
	ModeServe = "serve"
	ModeBatch = "batch"
)

// Config contiene la configurazione del comando vns
type Config struct {
	Mode        string        `env:"VNS_MODE"          envDefault:"run"`
	Root        string        `env:"VNS_ROOT"          envDefault:"."`
	Entry       string        `env:"VNS_ENTRY"         envDefault:"main.vns"`
	Chapter     string        `env:"VNS_CHAPTER"`
	Port        int           `env:"VNS_PORT"          envDefault:"8080"`
	CORSOrigins []string      `env:"VNS_CORS_ORIGINS"  envDefault:"http://localhost:3000,http://localhost:5173" envSeparator:","`
	Debug       bool          `env:"VNS_DEBUG"`
	LogLevel    string        `env:"VNS_LOG_LEVEL"     envDefault:"info"`
	LogEncoding string        `env:"VNS_LOG_ENCODING"  envDefault:"console"`
	SaveDB      string        `env:"VNS_SAVE_DB"       envDefault:"vns-saves.db"`
	MaxSteps    int           `env:"VNS_MAX_STEPS"     envDefault:"10000"`
	Watch       bool          `env:"VNS_WATCH"`
	Choices     []int         `env:"VNS_CHOICES"       envSeparator:","`
	OutputDir   string        `env:"VNS_OUTPUT_DIR"    envDefault:"./test_results"`
	Parallel    int           `env:"VNS_PARALLEL"      envDefault:"4"`
	Debounce    time.Duration `env:"VNS_WATCH_DEBOUNCE" envDefault:"500ms"`
}

// Parse legge le variabili d'ambiente e poi i flag, che hanno la precedenza
func Parse(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	choices := intList(cfg.Choices)

	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "modalità: check, run, serve, batch")
	fs.StringVar(&cfg.Root, "root", cfg.Root, "cartella della storia")
	fs.StringVar(&cfg.Entry, "entry", cfg.Entry, "file iniziale, relativo alla cartella")
	fs.StringVar(&cfg.Chapter, "chapter", cfg.Chapter, "capitolo iniziale (sovrascrive config application)")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "porta HTTP")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "abilita vn_debug e log di debug")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "livello di log")
	fs.StringVar(&cfg.LogEncoding, "log-encoding", cfg.LogEncoding, "formato dei log: json o console")
	fs.StringVar(&cfg.SaveDB, "save-db", cfg.SaveDB, "database sqlite dei salvataggi")
	fs.IntVar(&cfg.MaxSteps, "max-steps", cfg.MaxSteps, "numero massimo di passi della simulazione")
	fs.BoolVar(&cfg.Watch, "watch", cfg.Watch, "ricarica la storia quando i file cambiano")
	fs.Var(&choices, "choices", "scelte da usare in ordine, separate da virgola")
	fs.StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "cartella dei report (batch)")
	fs.IntVar(&cfg.Parallel, "parallel", cfg.Parallel, "storie simulate in parallelo (batch)")
	fs.DurationVar(&cfg.Debounce, "debounce", cfg.Debounce, "attesa prima di ricaricare dopo una modifica")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.Choices = choices

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate controlla i valori che non hanno senso
func (c Config) Validate() error {
	switch c.Mode {
	case ModeCheck, ModeRun, ModeServe, ModeBatch:
	default:
		return fmt.Errorf("modalità non valida: %q", c.Mode)
	}
	if c.Entry == "" {
		return errors.New("il file iniziale è obbligatorio")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("porta non valida: %d", c.Port)
	}
	if c.Parallel < 1 {
		return fmt.Errorf("parallel deve essere almeno 1, ricevuto %d", c.Parallel)
	}
	return nil
}
