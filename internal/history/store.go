package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ClosedPosition is a completed round trip
type ClosedPosition struct {
	ID         string
	TradeDate  string // YYYY-MM-DD in the session timezone
	Symbol     string
	Strategy   string
	Qty        float64
	EntryPrice float64
	ExitPrice  float64
	PL         float64
	PLPercent  float64
	HoldTime   time.Duration
	ClosedAt   time.Time
}

// Stats aggregates closed positions
type Stats struct {
	Date          string
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
	TotalPL       float64
}

// Store persists closed positions in SQLite. It is used for reporting only.
type Store struct {
	db  *sql.DB
	loc *time.Location
}

// Open creates or opens the database at path. A nil loc means UTC.
func Open(path string, loc *time.Location) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Store{db: db, loc: loc}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DateKey formats t as a trade date in the store's timezone.
func (s *Store) DateKey(t time.Time) string {
	return t.In(s.loc).Format("2006-01-02")
}

// Record inserts p, filling ID and TradeDate when empty.
func (s *Store) Record(ctx context.Context, p ClosedPosition) (ClosedPosition, error) {
	if p.ClosedAt.IsZero() {
		p.ClosedAt = time.Now()
	}
	if p.ID == "" {
		p.ID = NewIDAt(p.ClosedAt)
	}
	if p.TradeDate == "" {
		p.TradeDate = s.DateKey(p.ClosedAt)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO closed_positions
		(id, trade_date, symbol, strategy, qty, entry_price, exit_price, pl, pl_percent, hold_seconds, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.TradeDate, p.Symbol, p.Strategy, p.Qty, p.EntryPrice, p.ExitPrice,
		p.PL, p.PLPercent, p.HoldTime.Seconds(), p.ClosedAt.UTC(),
	)
	if err != nil {
		return p, fmt.Errorf("record closed position %s: %w", p.Symbol, err)
	}
	return p, nil
}

// ListByDate returns the day's closed positions in close order.
func (s *Store) ListByDate(ctx context.Context, date string) ([]ClosedPosition, error) {
	return s.list(ctx, `WHERE trade_date = ? ORDER BY closed_at, id`, date)
}

// ListAll returns every closed position in close order.
func (s *Store) ListAll(ctx context.Context) ([]ClosedPosition, error) {
	return s.list(ctx, `ORDER BY closed_at, id`)
}

func (s *Store) list(ctx context.Context, where string, args ...interface{}) ([]ClosedPosition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trade_date, symbol, strategy, qty, entry_price, exit_price, pl, pl_percent, hold_seconds, closed_at
		FROM closed_positions `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClosedPosition
	for rows.Next() {
		var (
			p    ClosedPosition
			hold float64
		)
		if err := rows.Scan(&p.ID, &p.TradeDate, &p.Symbol, &p.Strategy, &p.Qty, &p.EntryPrice,
			&p.ExitPrice, &p.PL, &p.PLPercent, &hold, &p.ClosedAt); err != nil {
			return nil, err
		}
		p.HoldTime = time.Duration(hold * float64(time.Second))
		out = append(out, p)
	}
	return out, rows.Err()
}

const statsSelect = `
	SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN pl > 0 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN pl < 0 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(pl), 0)
	FROM closed_positions `

func (s *Store) stats(ctx context.Context, where string, args ...interface{}) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, statsSelect+where, args...).
		Scan(&st.TotalTrades, &st.WinningTrades, &st.LosingTrades, &st.TotalPL)
	if err != nil {
		return st, err
	}
	if st.TotalTrades > 0 {
		st.WinRate = float64(st.WinningTrades) / float64(st.TotalTrades) * 100
	}
	return st, nil
}

// DayStats aggregates one trade date. Breakeven trades count as neither win nor loss.
func (s *Store) DayStats(ctx context.Context, date string) (Stats, error) {
	st, err := s.stats(ctx, `WHERE trade_date = ?`, date)
	st.Date = date
	return st, err
}

// LifetimeStats aggregates every recorded trade
func (s *Store) LifetimeStats(ctx context.Context) (Stats, error) {
	return s.stats(ctx, "")
}

// MonthlyStats aggregates a calendar month
func (s *Store) MonthlyStats(ctx context.Context, year int, month time.Month) (Stats, error) {
	prefix := fmt.Sprintf("%04d-%02d", year, int(month))
	st, err := s.stats(ctx, `WHERE trade_date LIKE ?`, prefix+"-%")
	st.Date = prefix
	return st, err
}

// RecentDays returns per-day stats for the latest n trading days, newest first.
func (s *Store) RecentDays(ctx context.Context, n int) ([]Stats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT trade_date FROM closed_positions ORDER BY trade_date DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			rows.Close()
			return nil, err
		}
		dates = append(dates, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Stats, 0, len(dates))
	for _, d := range dates {
		st, err := s.DayStats(ctx, d)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
