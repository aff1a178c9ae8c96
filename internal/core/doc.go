// Package core provides the business logic for bulk QR code generation.
//
// The package holds all domain logic independent of any UI or transport
// layer. Web handlers and the CLI both drive it through [Service] or, for a
// single file on disk, through [Runner] directly.
//
// # Architecture
//
// The package is organized around a few concepts:
//
//   - Session: one uploaded file, its active sheet and the slot mapping.
//   - Runner: renders every row of a dataset into a zip archive, one run at
//     a time per session.
//   - BatchLimiter: caps concurrent runs across all sessions.
//   - Service: owns sessions and parks finished archives for one download.
//
// # Batch Runs
//
// Each row is classified before rendering:
//
//  1. No link and no name: the row is skipped silently.
//  2. A name but no link: the row is reported with [ReasonNoLink].
//  3. Otherwise the link is normalized and rendered.
//
// A renderer failure tied to one row is reported and the run continues. A
// [render.FatalError] aborts the run with a [FatalRunError] and no archive.
// Rows for which the renderer produced nothing are counted as dropped.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FILE001-FILE006: File errors (format, encoding, sheets)
//   - MAP001-MAP002: Mapping errors
//   - GEN001-GEN007: Generation errors (styles, fatal runs, downloads)
//   - TPL001-TPL005: Design template errors
//   - UPL002-UPL005: Session and limiter errors
//   - REQ001, RATE001: Malformed and rate-limited requests
package core
