// Package domain defines the core business entities for cmsync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - WorkItem: One upload, download or metadata update to perform
//   - ItemOutcome: The classified result of processing one WorkItem
//   - BatchSummary: Running tally of outcomes for one batch
//   - JobReport: The aggregate result of a scan or job file
//   - Config: Typed daemon configuration
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
