//go:build tools
// +build tools

// Package chatguard pins the code generators used by go generate (mockgen for
// the contract mocks) so go.mod and go.sum track them.
package chatguard

import (
	_ "go.uber.org/mock/mockgen"
)
