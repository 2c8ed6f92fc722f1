// Package storage persists projects, analysis rounds and their artifacts.
//
// A Store is rooted at a directory chosen by configuration:
//
//	<root>/catalog.db                          project and round catalog (SQLite)
//	<root>/projects/<project>/rounds/<round>/
//	    inputs/   beneficiarios, ficha snapshots and inputs_hash.json
//	    config/   mapping.json, analysis_config.json, filters.json
//	    outputs/  consolidated, outliers, trend.json, summary.json
//
// Table and row snapshots are JSON, snappy-compressed unless compression is
// disabled. Every file write reports a WriteResult whose outcome is
// written, written_fallback (the atomic rename failed and the file was
// written in place) or failed. Writes to one round are not coordinated;
// callers serialize them.
package storage
