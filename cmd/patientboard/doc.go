// Package main hosts the patientboard CLI.
//
// The Cobra command tree scans the clinic's patient photo folders, builds
// templates, uploads them to the patient service and reports ledger state.
// Configuration loading, logger setup and component wiring live in
// context.go and pipeline.go so each command only describes its own output.
package main
