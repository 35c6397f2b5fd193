package records

import (
	"database/sql"
	"log"

	// no _ in import mysql since we need mysql.NullTime
	"github.com/BurntSushi/migration"
	"github.com/go-sql-driver/mysql"
)

// mysqlSnapshots keeps snapshots in MySQL, so several servers can share the
// offline record list.
type mysqlSnapshots struct {
	db *sql.DB
}

// List of migrations to perform. Add new ones to the end.
// DO NOT change the order of items already in this list.
var mysqlMigrations = []migration.Migrator{
	mysqlschema1,
}

// Adapt the schema versioning for MySQL

var mysqlVersioning = dbVersion{
	GetSQL:    `SELECT max(version) FROM migration_version`,
	SetSQL:    `INSERT INTO migration_version (version, applied) VALUES (?, now())`,
	CreateSQL: `CREATE TABLE migration_version (version INTEGER, applied datetime)`,
}

// NewMysqlSnapshots connects to a MySQL database, bringing its schema up to
// date.
func NewMysqlSnapshots(dial string) (SnapshotStore, error) {
	db, err := migration.OpenWith(
		"mysql",
		dial,
		mysqlMigrations,
		mysqlVersioning.Get,
		mysqlVersioning.Set)
	if err != nil {
		log.Printf("Open Mysql: %s", err.Error())
		return nil, err
	}
	return &mysqlSnapshots{db: db}, nil
}

func (ms *mysqlSnapshots) Latest(endpoint string) (*Snapshot, error) {
	const query = `SELECT fetched, body FROM snapshots WHERE endpoint = ? LIMIT 1`

	var when mysql.NullTime
	var s = Snapshot{Endpoint: endpoint}
	err := ms.db.QueryRow(query, endpoint).Scan(&when, &s.Body)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	if when.Valid {
		s.Fetched = when.Time
	}
	return &s, nil
}

func (ms *mysqlSnapshots) Save(s Snapshot) error {
	const stmt = `INSERT INTO snapshots (endpoint, fetched, body) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE fetched=?, body=?`
	_, err := ms.db.Exec(stmt, s.Endpoint, s.Fetched, s.Body, s.Fetched, s.Body)
	return err
}

func mysqlschema1(tx migration.LimitedTx) error {
	var s = []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
		id int PRIMARY KEY AUTO_INCREMENT,
		endpoint varchar(255) UNIQUE,
		fetched datetime,
		body mediumblob)`,
	}
	return execlist(tx, s)
}
