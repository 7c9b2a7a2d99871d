package database

import (
	"log"

	"gorm.io/gorm"
)

// ensurePrintCodeColumn makes sure print_requests.print_code exists.
// Early deployments created the table without it; the requests only carried
// the order id and the watcher re-resolved the code from the orders table.
// Works for SQLite, MySQL, and PostgreSQL.
func ensurePrintCodeColumn(db *gorm.DB) error {
	var hasCol bool
	dbType := getEnv("DB_TYPE", "sqlite")
	switch dbType {
	case "mysql":
		rows, err := db.Raw("SHOW COLUMNS FROM print_requests LIKE 'print_code'").Rows()
		if err == nil {
			defer rows.Close()
			if rows.Next() {
				hasCol = true
			}
		}
	case "postgres", "postgresql":
		rows, err := db.Raw("SELECT column_name FROM information_schema.columns WHERE table_name = 'print_requests' AND column_name = 'print_code'").Rows()
		if err == nil {
			defer rows.Close()
			if rows.Next() {
				hasCol = true
			}
		}
	default: // sqlite
		rows, err := db.Raw("PRAGMA table_info(print_requests)").Rows()
		if err == nil {
			defer rows.Close()
			var (
				cid     int
				name    string
				ctype   string
				notnull int
				dflt    interface{}
				pk      int
			)
			for rows.Next() {
				if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err == nil {
					if name == "print_code" {
						hasCol = true
						break
					}
				}
			}
		}
	}

	if !hasCol {
		// Add nullable column to avoid failures on existing rows
		if err := db.Exec("ALTER TABLE print_requests ADD COLUMN print_code VARCHAR(100)").Error; err != nil {
			log.Println("warning: failed to add print_code column:", err)
		} else {
			log.Println("added print_code column to print_requests table")
		}
	}

	return nil
}

