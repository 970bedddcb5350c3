package store

import "github.com/codeready-toolchain/agentmem/pkg/apperr"

func wrapBackend(op string, err error) error {
	return apperr.Backendf("store: %s: %v", op, err)
}
