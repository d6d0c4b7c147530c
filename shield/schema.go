package shield

import "database/sql"

// Schema holds the maintenance flag table. Idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS maintenance (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    active INTEGER NOT NULL DEFAULT 0,
    message TEXT NOT NULL DEFAULT 'Maintenance in progress.',
    updated_at INTEGER NOT NULL DEFAULT 0
);
`

// Init applies the shield schema to the given database.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
