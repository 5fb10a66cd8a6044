// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - ConfigStore: Application configuration
//   - RunStore: Job report history
//   - SchedulerStore: Scan schedule state and task history
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - RepositoryClient: The CM repository. Without it every item fails with
//     OutcomeFailedNoClient and probes never succeed.
//   - SecretStore: Password storage. Without it the password must come from the environment.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
