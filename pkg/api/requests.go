package api

import "github.com/codeready-toolchain/benchwiki/pkg/orchestrator"

// StartRunRequest is the HTTP request body for POST /runs. It mirrors
// orchestrator.RunConfig field-for-field so callers can't submit extra
// fields that silently do nothing.
type StartRunRequest orchestrator.RunConfig
