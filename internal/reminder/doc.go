// Package reminder scans the reminder table on a fixed interval and delivers
// each unsent reminder once, shortly before its scheduled time.
//
// Rows live in a sheet.Table with the layout
//
//	datetime | message | channel_id | is_sent
//
// and a header in row 1. The sheet row number is the record identity.
package reminder
