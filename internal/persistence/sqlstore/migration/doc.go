// Package migration applies versioned schema migrations to SQLite and
// PostgreSQL databases.
//
// Migration files are read from an fs.FS (normally an embed.FS) and follow
// the naming convention {version}_{description}.sql, e.g.
// "001_initial_schema.sql". Each file runs in its own transaction and is
// recorded in the schema_migrations table with its checksum, so editing an
// applied file is detected on the next run.
//
//	db, err := migration.Open(migration.DefaultSQLiteConfig("reservations.db"))
//	manager := migration.NewManager(
//		migration.NewFSScanner(files, "migrations/sqlite"),
//		migration.NewSQLExecutor(db, migration.DriverSQLite),
//		logger,
//	)
//	err = manager.Run(ctx)
package migration
