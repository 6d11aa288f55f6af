package models

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"gorm.io/gen"
	"gorm.io/gorm"
)

/*
Model generation and column drift report.

Run the server with GENERATE_MODELS=true to migrate every model, print the
column drift report and write typed query helpers to GENERATE_MODELS_OUT
(default ./generated). The process exits once generation is done.

The drift report lists, per table, the columns that exist in the database but
have no matching field on the Go model, for example:

	table=blogs missing=[legacy_views]
*/

// All lists the models owned by this service, in migration order.
func All() []interface{} {
	return []interface{}{
		&Blog{},
	}
}

// Migrate creates or alters the tables for every model.
func Migrate(db *gorm.DB) error {
	migrateDB := db.Session(&gorm.Session{
		SkipDefaultTransaction: true,
		PrepareStmt:            false,
	})
	if err := migrateDB.AutoMigrate(All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func GenerateModels(db *gorm.DB, outPath string) error {
	if err := db.Exec("SELECT 1").Error; err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}
	if outPath == "" {
		outPath = "./generated"
	}

	log.Info().Msg("Starting database migration...")
	if err := Migrate(db); err != nil {
		return err
	}
	log.Info().Msg("Database migration completed successfully")

	report, err := ColumnDriftReport(db)
	if err != nil {
		return err
	}
	total := 0
	for table, missing := range report {
		total += len(missing)
		if len(missing) == 0 {
			log.Info().Str("table", table).Msg("All columns are accounted for in the model")
			continue
		}
		log.Warn().Str("table", table).Strs("missing", missing).Msg("Columns not accounted for in model")
	}
	log.Info().Int("total", total).Msg("Column drift report complete")

	g := gen.NewGenerator(gen.Config{
		OutPath:           outPath,
		Mode:              gen.WithDefaultQuery | gen.WithQueryInterface,
		FieldNullable:     true,
		FieldCoverable:    true,
		FieldWithIndexTag: true,
		FieldWithTypeTag:  true,
	})
	g.UseDB(db)
	g.ApplyBasic(All()...)
	g.Execute()

	log.Info().Str("path", outPath).Msg("Model generation complete")
	return nil
}

// ColumnDriftReport maps each model's table to the database columns the model
// does not declare. Tables that do not exist yet are skipped.
func ColumnDriftReport(db *gorm.DB) (map[string][]string, error) {
	report := make(map[string][]string)
	migrator := db.Migrator()

	for _, model := range All() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, fmt.Errorf("parse model %T: %w", model, err)
		}
		table := stmt.Schema.Table
		if !migrator.HasTable(model) {
			log.Debug().Str("table", table).Msg("Table does not exist yet")
			continue
		}

		columnTypes, err := migrator.ColumnTypes(model)
		if err != nil {
			return nil, fmt.Errorf("error querying columns for table %s: %w", table, err)
		}

		dbColumns := make([]string, 0, len(columnTypes))
		for _, ct := range columnTypes {
			dbColumns = append(dbColumns, ct.Name())
		}
		report[table] = findColumnMismatches(dbColumns, stmt.Schema.DBNames)
	}

	return report, nil
}

// findColumnMismatches finds columns that exist in the database but not in the model
func findColumnMismatches(dbColumns, modelFields []string) []string {
	modelFieldSet := make(map[string]bool, len(modelFields))
	for _, field := range modelFields {
		modelFieldSet[field] = true
	}

	mismatches := []string{}
	for _, col := range dbColumns {
		if !modelFieldSet[col] {
			mismatches = append(mismatches, col)
		}
	}
	sort.Strings(mismatches)
	return mismatches
}
