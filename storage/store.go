package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"vns-engine/vm"
)

var (
	// ErrSaveNotFound indica uno slot di salvataggio inesistente
	ErrSaveNotFound = errors.New("salvataggio non trovato")
	// ErrSlotRequired indica uno slot vuoto
	ErrSlotRequired = errors.New("slot obbligatorio")
	// ErrNotConfigured indica un archivio non aperto
	ErrNotConfigured = errors.New("archivio salvataggi non configurato")
)

const schema = `
CREATE TABLE IF NOT EXISTS saves (
	slot       TEXT PRIMARY KEY,
	story      TEXT NOT NULL,
	state      TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SaveRecord è un salvataggio completo
type SaveRecord struct {
	Slot      string    `json:"slot"`
	Story     string    `json:"story"`
	State     vm.State  `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SaveSummary descrive un salvataggio senza caricarne lo stato
type SaveSummary struct {
	Slot      string    `json:"slot"`
	Story     string    `json:"story"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SaveStore salva gli stati della VM su SQLite
type SaveStore struct {
	sqlDB *sql.DB
}

// Open apre (o crea) il database dei salvataggi
func Open(path string) (*SaveStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("percorso del database obbligatorio")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("errore apertura database sqlite: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("database sqlite non raggiungibile: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("errore creazione schema: %w", err)
	}
	return &SaveStore{sqlDB: sqlDB}, nil
}

// Close rilascia la connessione
func (s *SaveStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SaveStore) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return ErrNotConfigured
	}
	return nil
}

// Save scrive lo stato nello slot, sovrascrivendo quello precedente
func (s *SaveStore) Save(ctx context.Context, slot, story string, state vm.State) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	slot = strings.TrimSpace(slot)
	if slot == "" {
		return ErrSlotRequired
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("errore codifica stato: %w", err)
	}

	now := time.Now().UTC().UnixMilli()
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO saves (slot, story, state, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(slot) DO UPDATE SET
	story = excluded.story,
	state = excluded.state,
	updated_at = excluded.updated_at`,
		slot, story, string(data), now, now)
	if err != nil {
		return fmt.Errorf("errore salvataggio slot %s: %w", slot, err)
	}
	return nil
}

// Load legge lo slot indicato
func (s *SaveStore) Load(ctx context.Context, slot string) (SaveRecord, error) {
	if err := s.ready(ctx); err != nil {
		return SaveRecord{}, err
	}

	var (
		record    SaveRecord
		data      string
		createdAt int64
		updatedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT slot, story, state, created_at, updated_at FROM saves WHERE slot = ?`,
		strings.TrimSpace(slot),
	).Scan(&record.Slot, &record.Story, &data, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SaveRecord{}, fmt.Errorf("%w: %s", ErrSaveNotFound, slot)
	}
	if err != nil {
		return SaveRecord{}, fmt.Errorf("errore caricamento slot %s: %w", slot, err)
	}

	if err := json.Unmarshal([]byte(data), &record.State); err != nil {
		return SaveRecord{}, fmt.Errorf("errore decodifica stato: %w", err)
	}
	record.CreatedAt = time.UnixMilli(createdAt).UTC()
	record.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return record, nil
}

// List restituisce i salvataggi, dal più recente
func (s *SaveStore) List(ctx context.Context) ([]SaveSummary, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT slot, story, updated_at FROM saves ORDER BY updated_at DESC, slot ASC`)
	if err != nil {
		return nil, fmt.Errorf("errore elenco salvataggi: %w", err)
	}
	defer rows.Close()

	summaries := []SaveSummary{}
	for rows.Next() {
		var (
			summary   SaveSummary
			updatedAt int64
		)
		if err := rows.Scan(&summary.Slot, &summary.Story, &updatedAt); err != nil {
			return nil, fmt.Errorf("errore lettura salvataggio: %w", err)
		}
		summary.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("errore scansione salvataggi: %w", err)
	}
	return summaries, nil
}

// Delete rimuove uno slot
func (s *SaveStore) Delete(ctx context.Context, slot string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM saves WHERE slot = ?`, strings.TrimSpace(slot))
	if err != nil {
		return fmt.Errorf("errore eliminazione slot %s: %w", slot, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("errore eliminazione slot %s: %w", slot, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrSaveNotFound, slot)
	}
	return nil
}
