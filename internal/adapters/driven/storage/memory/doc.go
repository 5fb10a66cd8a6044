// Package memory provides in-memory implementations of the run history
// and scheduler stores. The daemon falls back to them when the SQLite
// database cannot be opened; history is then lost on exit.
package memory
