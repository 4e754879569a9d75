package repos

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/wheelibin/yeetlight/internal/models"
)

// the command ledger is append-only and kept across restarts
const initCommandSchema = `
  CREATE TABLE IF NOT EXISTS command (
    id VARCHAR(36) PRIMARY KEY,
    bulb TEXT NOT NULL,
    attribute TEXT NOT NULL,
    value TEXT,
    prerequisite INTEGER NOT NULL DEFAULT 0,
    linked_from TEXT,
    succeeded INTEGER NOT NULL,
    error TEXT,
    issued_at INTEGER NOT NULL
  );

  CREATE INDEX IF NOT EXISTS idx_command_bulb_issued ON command(bulb, issued_at);
`

type CommandRepo struct {
	logger *log.Logger
	db     *sql.DB
}

func NewCommandRepo(logger *log.Logger, db *sql.DB) (*CommandRepo, error) {

	_, err := db.Exec(initCommandSchema)
	if err != nil {
		return nil, fmt.Errorf("Error initialising command schema: %w", err)
	}

	return &CommandRepo{logger: logger, db: db}, nil
}

func (r *CommandRepo) Record(rec models.CommandRecord) error {
	_, err := r.db.Exec(`
    INSERT INTO command (id, bulb, attribute, value, prerequisite, linked_from, succeeded, error, issued_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID,
		rec.Bulb,
		string(rec.Attribute),
		rec.Value,
		rec.Prerequisite,
		sql.NullString{String: rec.LinkedFrom, Valid: rec.LinkedFrom != ""},
		rec.Succeeded,
		sql.NullString{String: rec.Error, Valid: rec.Error != ""},
		rec.IssuedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("Error recording command (%s) for bulb (%s): %w", rec.ID, rec.Bulb, err)
	}
	return nil
}

// Recent returns the latest commands, newest first
func (r *CommandRepo) Recent(limit int) ([]models.CommandRecord, error) {
	rows, err := r.db.Query(`
    SELECT id, bulb, attribute, value, prerequisite, linked_from, succeeded, error, issued_at
    FROM command
    ORDER BY issued_at DESC, rowid DESC
    LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("Error reading recent commands: %w", err)
	}
	return scanCommands(rows)
}

// Failures returns the failed commands for a bulb issued at or after since, oldest first
func (r *CommandRepo) Failures(bulb string, since time.Time) ([]models.CommandRecord, error) {
	rows, err := r.db.Query(`
    SELECT id, bulb, attribute, value, prerequisite, linked_from, succeeded, error, issued_at
    FROM command
    WHERE bulb = $1 AND succeeded = 0 AND issued_at >= $2
    ORDER BY issued_at, rowid`, bulb, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("Error reading failed commands for bulb (%s): %w", bulb, err)
	}
	return scanCommands(rows)
}

func scanCommands(rows *sql.Rows) ([]models.CommandRecord, error) {
	defer rows.Close()

	records := []models.CommandRecord{}
	for rows.Next() {
		var (
			rec      models.CommandRecord
			attr     string
			value    sql.NullString
			linked   sql.NullString
			errText  sql.NullString
			issuedAt int64
		)
		err := rows.Scan(&rec.ID, &rec.Bulb, &attr, &value, &rec.Prerequisite, &linked, &rec.Succeeded, &errText, &issuedAt)
		if err != nil {
			return nil, fmt.Errorf("Error reading command: %w", err)
		}
		rec.Attribute = models.Attribute(attr)
		rec.Value = value.String
		rec.LinkedFrom = linked.String
		rec.Error = errText.String
		rec.IssuedAt = time.UnixMilli(issuedAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}
