package repos

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/wheelibin/yeetlight/internal/models"
)

// nullable observed columns are NULL until the first status fetch (unknown)
const initBulbSchema = `
  CREATE TABLE IF NOT EXISTS bulb (
    name TEXT PRIMARY KEY,
    addr TEXT NOT NULL,
    rgb INTEGER NOT NULL DEFAULT 0,
    power INTEGER,
    brightness INTEGER,
    temperature INTEGER,
    color INTEGER,
    last_update_time INTEGER
  );

  CREATE TABLE IF NOT EXISTS bulb_link (
    bulb TEXT NOT NULL,
    position INTEGER NOT NULL,
    linked TEXT NOT NULL,
    PRIMARY KEY (bulb, position)
  );

  DELETE FROM bulb;
  DELETE FROM bulb_link;
`

var attributeColumns = map[models.Attribute]string{
	models.AttrPower:       "power",
	models.AttrBrightness:  "brightness",
	models.AttrTemperature: "temperature",
	models.AttrColor:       "color",
}

type BulbRepo struct {
	logger *log.Logger
	db     *sql.DB
}

func NewBulbRepo(logger *log.Logger, db *sql.DB) (*BulbRepo, error) {

	_, err := db.Exec(initBulbSchema)
	if err != nil {
		return nil, fmt.Errorf("Error initialising bulb schema: %w", err)
	}

	return &BulbRepo{logger: logger, db: db}, nil
}

func (r *BulbRepo) Add(bulbs []models.Bulb) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("Error adding bulbs: %w", err)
	}
	defer tx.Rollback()

	for _, bulb := range bulbs {
		_, err := tx.Exec(
			`INSERT INTO bulb (name, addr, rgb) VALUES ($1, $2, $3);`,
			bulb.Name,
			bulb.Addr,
			bulb.IsRGB,
		)
		if err != nil {
			return fmt.Errorf("Error adding bulb (%s): %w", bulb.Name, err)
		}
		for i, linked := range bulb.Linked {
			_, err := tx.Exec(
				`INSERT INTO bulb_link (bulb, position, linked) VALUES ($1, $2, $3);`,
				bulb.Name, i, linked,
			)
			if err != nil {
				return fmt.Errorf("Error adding link (%s -> %s): %w", bulb.Name, linked, err)
			}
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("Error adding bulbs: %w", err)
	}
	return nil
}

func (r *BulbRepo) Names() ([]string, error) {
	rows, err := r.db.Query("SELECT name FROM bulb ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("Error reading bulb names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("Error reading bulb names: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Get returns the bulb and whether it exists
func (r *BulbRepo) Get(name string) (models.Bulb, bool, error) {
	row := r.db.QueryRow(`
    SELECT addr, rgb, power, brightness, temperature, color, last_update_time
    FROM bulb
    WHERE name = $1`, name)

	var (
		bulb        = models.Bulb{Name: name}
		power       sql.NullInt64
		brightness  sql.NullInt64
		temperature sql.NullInt64
		color       sql.NullInt64
		updated     sql.NullInt64
	)
	err := row.Scan(&bulb.Addr, &bulb.IsRGB, &power, &brightness, &temperature, &color, &updated)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Bulb{}, false, nil
		}
		return models.Bulb{}, false, fmt.Errorf("Error reading bulb (%s): %w", name, err)
	}

	bulb.Power = models.PowerFromReading(readingFromNull(power))
	bulb.Brightness = readingFromNull(brightness)
	bulb.Temperature = readingFromNull(temperature)
	bulb.Color = readingFromNull(color)
	if updated.Valid {
		t := time.UnixMilli(updated.Int64)
		bulb.UpdatedAt = &t
	}

	bulb.Linked, err = r.links(name)
	if err != nil {
		return models.Bulb{}, false, err
	}

	return bulb, true, nil
}

func (r *BulbRepo) links(name string) ([]string, error) {
	rows, err := r.db.Query("SELECT linked FROM bulb_link WHERE bulb = $1 ORDER BY position", name)
	if err != nil {
		return nil, fmt.Errorf("Error reading links for bulb (%s): %w", name, err)
	}
	defer rows.Close()

	linked := []string{}
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("Error reading links for bulb (%s): %w", name, err)
		}
		linked = append(linked, l)
	}
	return linked, rows.Err()
}

func (r *BulbRepo) SetAttribute(name string, attr models.Attribute, value models.Reading) error {
	column, ok := attributeColumns[attr]
	if !ok {
		return fmt.Errorf("Error setting bulb (%s): invalid attribute %q", name, attr)
	}

	_, err := r.db.Exec(
		fmt.Sprintf("UPDATE bulb SET %s = $1, last_update_time = $2 WHERE name = $3", column),
		nullReading(value), time.Now().UnixMilli(), name,
	)
	if err != nil {
		return fmt.Errorf("Error setting bulb (%s) %s to %v: %w", name, attr, value, err)
	}
	return nil
}

// SetState writes all observed attributes in one statement (status fetch)
func (r *BulbRepo) SetState(name string, power models.Power, brightness, temperature, color models.Reading) error {
	_, err := r.db.Exec(`
    UPDATE bulb
    SET power = $1,
        brightness = $2,
        temperature = $3,
        color = $4,
        last_update_time = $5
    WHERE name = $6`,
		nullReading(power.Reading()),
		nullReading(brightness),
		nullReading(temperature),
		nullReading(color),
		time.Now().UnixMilli(),
		name,
	)
	if err != nil {
		return fmt.Errorf("Error setting state for bulb (%s): %w", name, err)
	}
	return nil
}
