package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed components.sql
var componentsSQL string

//go:embed references.sql
var referencesSQL string

// Function lists for verification
var ComponentsFunctions = []string{
	"init_components",
	"upsert_component",
	"select_component",
	"select_component_type",
	"select_components_by_source_identifier",
	"select_components_citing",
	"component_matches",
	"select_components",
	"count_components",
	"select_groups",
	"count_groups",
	"select_facets",
	"suggest_components",
	"count_hits",
	"delete_component",
}

var ReferencesFunctions = []string{
	"init_references",
	"insert_reference",
	"update_reference",
	"select_references_matching",
	"select_references",
	"count_references",
	"delete_reference",
	"delete_references_by_owner",
	"delete_stale_references",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadComponentsSql loads component-related SQL functions
func LoadComponentsSql(db *sql.DB, force bool) error {
	return loadSql(db, "components", componentsSQL, ComponentsFunctions, force)
}

// LoadReferencesSql loads reference-related SQL functions
func LoadReferencesSql(db *sql.DB, force bool) error {
	return loadSql(db, "references", referencesSQL, ReferencesFunctions, force)
}

// LoadAllSql loads all SQL functions
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadComponentsSql(db, force); err != nil {
		return err
	}

	if err := LoadReferencesSql(db, force); err != nil {
		return err
	}

	return nil
}

func loadSql(db *sql.DB, name string, script string, functions []string, force bool) error {
	if !force {
		exist, err := checkFunctions(db, functions)
		if err != nil {
			return fmt.Errorf("error checking existing %s functions: %w", name, err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(script)
	if err != nil {
		return fmt.Errorf("error executing %s SQL: %w", name, err)
	}

	exist, err := checkFunctions(db, functions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Printf("SQL %s functions loaded successfully", name)
	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
