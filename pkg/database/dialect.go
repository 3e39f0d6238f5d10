package database

// Dialect holds the column types that differ between the supported drivers.
type Dialect struct {
	Timestamp string
	Date      string
	Float     string
}

// DialectFor returns the column types for a driver name as reported by
// sqlx.DB.DriverName.
func DialectFor(driver string) Dialect {
	if driver == DriverSQLite {
		return Dialect{Timestamp: "TIMESTAMP", Date: "DATE", Float: "REAL"}
	}
	return Dialect{Timestamp: "TIMESTAMPTZ", Date: "DATE", Float: "DOUBLE PRECISION"}
}
