package configsqlite

import (
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

type Struct struct {
	File string `json:"file"`
}

// OpenDB opens the configured sqlite file, creating it and applying
// the schema when it does not exist yet.
func (config Struct) OpenDB(schema string) (*sql.DB, error) {
	if config.File == "" {
		return nil, fmt.Errorf("a database path was not specified")
	}

	_, statErr := os.Stat(config.File)
	if os.IsNotExist(statErr) {
		f, err := os.Create(config.File)
		if err != nil {
			return nil, err
		}
		f.Close()
	}

	db, err := sql.Open("sqlite", config.File)
	if err != nil {
		return nil, err
	}
	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	if schema != "" {
		_, err = db.Exec(schema)
		if err != nil {
			return nil, err
		}
	}
	return db, nil
}
