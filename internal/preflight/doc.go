// Package preflight provides readiness checks for the filesystem paths,
// assets and services patientboard depends on.
//
// The batch commands call RunAll before touching any folder and refuse to
// start when a required check fails. The "check" command prints every
// result, including optional external tools reported by CheckSystemDeps.
package preflight
