// Package sheet is the row-oriented table store the bot keeps its state in.
//
// A Book holds named worksheets. Rows are addressed 1-based the way spreadsheets
// are (row 1 is usually a header), and only three operations are needed:
// bulk read, single cell update and row append.
//
// Drivers:
//   - "google": Google Sheets API v4 (service account credentials)
//   - "sqlite": local SQLite file (modernc.org/sqlite, no cgo)
//   - "memory": process memory (tests, dry runs)
package sheet
