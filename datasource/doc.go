// Package datasource runs read-only SQL against SQLite, MySQL (and MariaDB,
// StarRocks), PostgreSQL, Presto and Trino through one contract.
//
// Callers normally use a Facade, which opens a short-lived connection per
// operation and always closes it:
//
//	f := datasource.NewFacade(datasource.WithStrictSQL(true))
//	res, err := f.ExecuteQuery(ctx, profile, "SELECT * FROM t", nil, &datasource.Page{Size: 50})
//
// Every query passes the read-only Guard before it reaches a driver.
// Pagination is rewritten per dialect, and cell values are normalized so that
// timestamps, dates, times and decimals look the same on every engine.
package datasource
