package records

import (
	"database/sql"
	"log"

	"github.com/BurntSushi/migration"
	_ "github.com/cznic/ql/driver"
)

// qlSnapshots keeps snapshots in the QL embedded database. It is used when
// no MySQL server is configured.
type qlSnapshots struct {
	db *sql.DB
}

// List of migrations to perform. Add new ones to the end.
// DO NOT change the order of items already in this list.
var qlMigrations = []migration.Migrator{
	qlschema1,
}

var qlVersioning = dbVersion{
	GetSQL:    `SELECT max(version) FROM migration_version`,
	SetSQL:    `INSERT INTO migration_version (version, applied) VALUES (?1, now())`,
	CreateSQL: `CREATE TABLE migration_version (version int, applied time)`,
}

// NewQlSnapshots opens (or creates) a QL database in the given file. The
// filename "memory" keeps everything in memory.
func NewQlSnapshots(filename string) (SnapshotStore, error) {
	driver := "ql"
	if filename == "memory" {
		driver = "ql-mem"
		filename = "snapshots.db"
	}
	db, err := migration.OpenWith(
		driver,
		filename,
		qlMigrations,
		qlVersioning.Get,
		qlVersioning.Set)
	if err != nil {
		log.Printf("Open QL: %s", err.Error())
		return nil, err
	}
	return &qlSnapshots{db: db}, nil
}

func (qs *qlSnapshots) Latest(endpoint string) (*Snapshot, error) {
	const query = `SELECT fetched, body FROM snapshots WHERE endpoint == ?1 LIMIT 1`

	var s = Snapshot{Endpoint: endpoint}
	err := qs.db.QueryRow(query, endpoint).Scan(&s.Fetched, &s.Body)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return &s, nil
}

func (qs *qlSnapshots) Save(s Snapshot) error {
	const dbUpdate = `UPDATE snapshots SET fetched = ?2, body = ?3 WHERE endpoint == ?1`
	const dbInsert = `INSERT INTO snapshots VALUES (?1, ?2, ?3)`

	result, err := performExec(qs.db, dbUpdate, s.Endpoint, s.Fetched, s.Body)
	if err != nil {
		return err
	}
	nrows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if nrows == 0 {
		// no snapshot for this endpoint yet
		_, err = performExec(qs.db, dbInsert, s.Endpoint, s.Fetched, s.Body)
	}
	return err
}

func qlschema1(tx migration.LimitedTx) error {
	var s = []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			endpoint string,
			fetched time,
			body blob
		)`,
		`CREATE INDEX IF NOT EXISTS snapshotendpoint ON snapshots (endpoint)`,
	}
	return execlist(tx, s)
}
