// Package googlesheets is the sheet connector. Contacts live one per row; the
// header row decides which column each normalized field lands in.
package googlesheets
