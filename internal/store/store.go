package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/awaistahir/cheapest-period/internal/engine"
	_ "modernc.org/sqlite"
)

// fixed width so that text ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Evaluation is one recorded card evaluation
type Evaluation struct {
	ID           int64      `json:"id"`
	Card         string     `json:"card"`
	EvaluatedAt  time.Time  `json:"evaluated_at"`
	Outcome      string     `json:"outcome"`
	Start        *time.Time `json:"start,omitempty"`
	End          *time.Time `json:"end,omitempty"`
	AveragePrice *float64   `json:"average_price,omitempty"`
	ScaledPrice  *float64   `json:"scaled_price,omitempty"`
	Message      string     `json:"message,omitempty"`
}

// Store handles persistent storage using SQLite
type Store struct {
	db *sql.DB
}

// NewStore creates a new store and initializes the database
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// initialize creates the database schema
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rate_cache (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tariff TEXT NOT NULL,
		date TEXT NOT NULL,
		rates TEXT NOT NULL,
		fetched_at TEXT NOT NULL,
		UNIQUE(tariff, date)
	);

	CREATE TABLE IF NOT EXISTS evaluations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		card TEXT NOT NULL,
		evaluated_at TEXT NOT NULL,
		outcome TEXT NOT NULL,
		period_start TEXT,
		period_end TEXT,
		average_price REAL,
		scaled_price REAL,
		message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_rate_cache_date ON rate_cache(tariff, date);
	CREATE INDEX IF NOT EXISTS idx_evaluations_card ON evaluations(card, evaluated_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CacheRates stores a fetched day of rates
func (s *Store) CacheRates(tariff string, day time.Time, rates []engine.RateInterval) error {
	ratesJSON, err := json.Marshal(rates)
	if err != nil {
		return err
	}

	query := `INSERT OR REPLACE INTO rate_cache (tariff, date, rates, fetched_at)
		VALUES (?, ?, ?, ?)`

	_, err = s.db.Exec(query, tariff, day.Format("2006-01-02"), string(ratesJSON), time.Now().UTC().Format(timeLayout))
	return err
}

// CachedRates retrieves a cached day of rates
func (s *Store) CachedRates(tariff string, day time.Time) ([]engine.RateInterval, error) {
	query := `SELECT rates FROM rate_cache WHERE tariff = ? AND date = ?`

	var ratesJSON string
	err := s.db.QueryRow(query, tariff, day.Format("2006-01-02")).Scan(&ratesJSON)
	if err != nil {
		return nil, err
	}

	var rates []engine.RateInterval
	if err := json.Unmarshal([]byte(ratesJSON), &rates); err != nil {
		return nil, err
	}

	return rates, nil
}

// PruneRates deletes cached days before the given day
func (s *Store) PruneRates(before time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM rate_cache WHERE date < ?`, before.Format("2006-01-02"))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RecordEvaluation appends an evaluation to the history
func (s *Store) RecordEvaluation(e *Evaluation) error {
	var start, end sql.NullString
	if e.Start != nil {
		start = sql.NullString{String: e.Start.UTC().Format(timeLayout), Valid: true}
	}
	if e.End != nil {
		end = sql.NullString{String: e.End.UTC().Format(timeLayout), Valid: true}
	}

	var avg, scaled sql.NullFloat64
	if e.AveragePrice != nil {
		avg = sql.NullFloat64{Float64: *e.AveragePrice, Valid: true}
	}
	if e.ScaledPrice != nil {
		scaled = sql.NullFloat64{Float64: *e.ScaledPrice, Valid: true}
	}

	query := `INSERT INTO evaluations
		(card, evaluated_at, outcome, period_start, period_end, average_price, scaled_price, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.db.Exec(query, e.Card, e.EvaluatedAt.UTC().Format(timeLayout), e.Outcome,
		start, end, avg, scaled, e.Message)
	if err != nil {
		return err
	}

	e.ID, _ = res.LastInsertId()
	return nil
}

// History returns the most recent evaluations of a card, newest first
func (s *Store) History(card string, limit int) ([]*Evaluation, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, card, evaluated_at, outcome, period_start, period_end, average_price, scaled_price, message
		FROM evaluations WHERE card = ? ORDER BY evaluated_at DESC, id DESC LIMIT ?`

	rows, err := s.db.Query(query, card, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	evaluations := []*Evaluation{}
	for rows.Next() {
		var e Evaluation
		var evaluatedAt string
		var start, end, message sql.NullString
		var avg, scaled sql.NullFloat64

		if err := rows.Scan(&e.ID, &e.Card, &evaluatedAt, &e.Outcome, &start, &end, &avg, &scaled, &message); err != nil {
			return nil, err
		}

		e.EvaluatedAt, _ = time.Parse(timeLayout, evaluatedAt)
		if start.Valid {
			t, _ := time.Parse(timeLayout, start.String)
			e.Start = &t
		}
		if end.Valid {
			t, _ := time.Parse(timeLayout, end.String)
			e.End = &t
		}
		if avg.Valid {
			e.AveragePrice = &avg.Float64
		}
		if scaled.Valid {
			e.ScaledPrice = &scaled.Float64
		}
		e.Message = message.String

		evaluations = append(evaluations, &e)
	}

	return evaluations, rows.Err()
}
