/*
Package domain holds the core types shared across Grove: the Session model,
the closed Value type used for session state, the failure taxonomy for remote
calls, and the WorkItem/Outcome pair consumed by the batch orchestrator.

The package has no dependencies on transports or stores. Adapters translate
wire formats into these types; the orchestration layer only ever reasons about
domain values.
*/
package domain
