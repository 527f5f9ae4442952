// Package api carries the backend's OpenAPI description.
package api

import _ "embed"

// Spec is the raw OpenAPI document for the session backend.
//
//go:embed openapi.yaml
var Spec []byte
