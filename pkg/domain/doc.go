/*
Package domain contains the core domain models and business logic for Kleiō.

It defines the fundamental entities of experiment tracking: Trials (one
reserved execution of a command line with its resolved configuration),
the trial status machine, the event-sourced attribute log (stdout, stderr,
tags, statistics) and the fingerprints used for conflict detection on
resume (code version, host environment). This package is kept pure and
free of external dependencies like I/O or persistence, following
Hexagonal Architecture principles.

# Key Entities

  - Trial: Immutable identity (commandline + configuration + lineage)
    plus an ordered event log of everything that happened during runs.
  - Status: The lifecycle state machine (new, reserved, running, ...).
  - Event: One append-only record in a trial attribute stream.
  - Fingerprint: Code-version and host snapshots compared on resume.
  - Conflict: A detected difference between a stored trial and the
    environment trying to resume it.
*/
package domain
