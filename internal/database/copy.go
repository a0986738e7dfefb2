package database

import (
	"fmt"
	"reflect"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TableName resolves the table a model is stored in.
func TableName(db *gorm.DB, model interface{}) (string, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return "", err
	}
	return stmt.Schema.Table, nil
}

// CopyTables copies every row of every model from src to dst in batches,
// keeping primary keys. Rows whose key already exists in dst are skipped, so
// an interrupted copy can be re-run. It returns the rows read per table.
func CopyTables(src, dst *gorm.DB, batchSize int) (map[string]int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	counts := make(map[string]int64)
	for _, model := range Tables() {
		table, err := TableName(src, model)
		if err != nil {
			return counts, err
		}

		batch := reflect.New(reflect.SliceOf(reflect.TypeOf(model).Elem())).Interface()
		var copied int64
		res := src.Model(model).FindInBatches(batch, batchSize, func(tx *gorm.DB, _ int) error {
			copied += tx.RowsAffected
			return dst.Omit(clause.Associations).
				Clauses(clause.OnConflict{DoNothing: true}).
				Create(batch).Error
		})
		if res.Error != nil {
			return counts, fmt.Errorf("copy %s: %w", table, res.Error)
		}
		counts[table] = copied
	}
	return counts, nil
}

// SyncSequences moves each table's PostgreSQL id sequence past the highest
// stored id. It is needed after rows were inserted with explicit ids.
func SyncSequences(db *gorm.DB) map[string]error {
	errs := make(map[string]error)
	for _, model := range Tables() {
		table, err := TableName(db, model)
		if err != nil {
			errs[fmt.Sprintf("%T", model)] = err
			continue
		}
		query := "SELECT setval(pg_get_serial_sequence('" + table + "', 'id'), coalesce(max(id), 0) + 1, false) FROM " + table
		errs[table] = db.Exec(query).Error
	}
	return errs
}
