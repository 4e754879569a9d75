package repos

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/wheelibin/yeetlight/internal/models"
)

// overrides belong to a running view, they never survive a restart
const initOverrideSchema = `
  CREATE TABLE IF NOT EXISTS override (
    bulb TEXT NOT NULL,
    attribute TEXT NOT NULL,
    value INTEGER NOT NULL,
    status TEXT NOT NULL,
    error TEXT,
    staged_at INTEGER NOT NULL,
    PRIMARY KEY (bulb, attribute)
  );

  DELETE FROM override;
`

type OverrideRepo struct {
	logger *log.Logger
	db     *sql.DB
}

func NewOverrideRepo(logger *log.Logger, db *sql.DB) (*OverrideRepo, error) {

	_, err := db.Exec(initOverrideSchema)
	if err != nil {
		return nil, fmt.Errorf("Error initialising override schema: %w", err)
	}

	return &OverrideRepo{logger: logger, db: db}, nil
}

// SetOverride replaces any existing override for the bulb attribute
func (r *OverrideRepo) SetOverride(o models.Override) error {
	_, err := r.db.Exec(`
    INSERT INTO override (bulb, attribute, value, status, error, staged_at)
    VALUES ($1, $2, $3, $4, NULL, $5)
    ON CONFLICT (bulb, attribute) DO UPDATE SET
      value = excluded.value,
      status = excluded.status,
      error = NULL,
      staged_at = excluded.staged_at`,
		o.Bulb, string(o.Attribute), o.Value, string(o.Status), o.StagedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("Error setting override for bulb (%s) %s to %v: %w", o.Bulb, o.Attribute, o.Value, err)
	}
	return nil
}

// GetOverride returns nil when there is no override for the bulb attribute
func (r *OverrideRepo) GetOverride(bulb string, attr models.Attribute) (*models.Override, error) {
	row := r.db.QueryRow(`
    SELECT value, status, error, staged_at
    FROM override
    WHERE bulb = $1 AND attribute = $2`, bulb, string(attr))

	var (
		o        = models.Override{Bulb: bulb, Attribute: attr}
		status   string
		errText  sql.NullString
		stagedAt int64
	)
	err := row.Scan(&o.Value, &status, &errText, &stagedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("Error reading override for bulb (%s) %s: %w", bulb, attr, err)
	}
	o.Status = models.OverrideStatus(status)
	o.Error = errText.String
	o.StagedAt = time.Unix(0, stagedAt)

	return &o, nil
}

// SetOverrideFailed flags the given stage as failed, keeping its value.
// Returns false when it was already cleared or replaced by a newer stage,
// even one holding the same value.
func (r *OverrideRepo) SetOverrideFailed(o models.Override, message string) (bool, error) {
	res, err := r.db.Exec(`
    UPDATE override
    SET status = $1, error = $2
    WHERE bulb = $3 AND attribute = $4 AND value = $5 AND staged_at = $6`,
		string(models.OverrideFailed), message, o.Bulb, string(o.Attribute), o.Value, o.StagedAt.UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("Error marking override for bulb (%s) %s as failed: %w", o.Bulb, o.Attribute, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *OverrideRepo) ClearOverride(bulb string, attr models.Attribute) error {
	_, err := r.db.Exec("DELETE FROM override WHERE bulb = $1 AND attribute = $2", bulb, string(attr))
	if err != nil {
		return fmt.Errorf("Error clearing override for bulb (%s) %s: %w", bulb, attr, err)
	}
	return nil
}

func (r *OverrideRepo) ClearOverrides(bulb string) error {
	_, err := r.db.Exec("DELETE FROM override WHERE bulb = $1", bulb)
	if err != nil {
		return fmt.Errorf("Error clearing overrides for bulb (%s): %w", bulb, err)
	}
	return nil
}

// ClearOverridesStagedBefore drops stale overrides and reports how many were removed
func (r *OverrideRepo) ClearOverridesStagedBefore(t time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM override WHERE staged_at < $1", t.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("Error clearing stale overrides: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
