/*
Package ports defines the interfaces between the Grove core and its adapters:
the remote backend (SessionAPI) and the local session registry (SessionStore).

Adapters live under pkg/adapters. The reusable contract suites in
pkg/ports/tests verify that any implementation honors the interface semantics.
*/
package ports
