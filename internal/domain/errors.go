package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for domain operations
var (
	// ErrNotFound is returned when a requested resource doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when trying to create a resource that already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidAddress is returned when an Ethereum address is invalid
	ErrInvalidAddress = errors.New("invalid address")

	// ErrNetworkMismatch is returned when the node's chain id differs from the configured one
	ErrNetworkMismatch = errors.New("network mismatch")

	// ErrUnsafeUpgrade is returned when a new implementation's storage layout is not a
	// compatible extension of the one it replaces
	ErrUnsafeUpgrade = errors.New("unsafe upgrade")

	// ErrUnsafeImplementation is returned when an implementation cannot sit behind a proxy
	ErrUnsafeImplementation = errors.New("unsafe implementation")

	// ErrMissingBytecode is returned when an artifact has no deployable bytecode
	ErrMissingBytecode = errors.New("no bytecode for implementation")

	// ErrMissingLayout is returned when an artifact carries no storage layout
	ErrMissingLayout = errors.New("no storage layout for implementation")

	// ErrReverted is returned when a transaction or call is rejected by the contract
	ErrReverted = errors.New("execution reverted")

	// ErrUnknownAccount is returned when a named account role cannot be resolved
	ErrUnknownAccount = errors.New("unknown account")

	// ErrCircularDependency is returned when plan steps depend on each other
	ErrCircularDependency = errors.New("circular dependency")
)

// LayoutChangeKind classifies a storage layout incompatibility
type LayoutChangeKind string

const (
	LayoutDeleted  LayoutChangeKind = "deleted"
	LayoutRenamed  LayoutChangeKind = "renamed"
	LayoutRetyped  LayoutChangeKind = "retyped"
	LayoutMoved    LayoutChangeKind = "moved"
	LayoutInserted LayoutChangeKind = "inserted"
)

// LayoutChange describes a single offending storage item
type LayoutChange struct {
	Kind     LayoutChangeKind
	Label    string
	Slot     string
	Offset   uint64
	Contract string
	Detail   string
}

func (c LayoutChange) String() string {
	s := fmt.Sprintf("%s: %s (slot %s, offset %d)", c.Kind, c.Label, c.Slot, c.Offset)
	if c.Contract != "" {
		s = fmt.Sprintf("%s in %s", s, c.Contract)
	}
	if c.Detail != "" {
		s = fmt.Sprintf("%s - %s", s, c.Detail)
	}
	return s
}

// UnsafeUpgradeError lists every storage incompatibility found between two layouts
type UnsafeUpgradeError struct {
	Name    string
	Changes []LayoutChange
}

func (e *UnsafeUpgradeError) Error() string {
	lines := make([]string, 0, len(e.Changes))
	for _, c := range e.Changes {
		lines = append(lines, "  - "+c.String())
	}
	sort.Strings(lines)
	name := e.Name
	if name == "" {
		name = "new implementation"
	}
	return fmt.Sprintf("unsafe upgrade of %s: storage layout is incompatible:\n%s", name, strings.Join(lines, "\n"))
}

func (e *UnsafeUpgradeError) Unwrap() error { return ErrUnsafeUpgrade }

// RevertError carries the reason a contract rejected a call
type RevertError struct {
	Method string
	Reason string
	TxHash string
}

func (e *RevertError) Error() string {
	msg := "execution reverted"
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	if e.Method != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Method)
	}
	if e.TxHash != "" {
		msg = fmt.Sprintf("%s [tx %s]", msg, e.TxHash)
	}
	return msg
}

func (e *RevertError) Unwrap() error { return ErrReverted }

// ArtifactNotFoundError is returned when no compiled artifact matches a contract name
type ArtifactNotFoundError struct {
	Name        string
	Suggestions []string
}

func (e *ArtifactNotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("artifact for contract %s not found", e.Name)
	}
	return fmt.Sprintf("artifact for contract %s not found, did you mean: %s?", e.Name, strings.Join(e.Suggestions, ", "))
}

func (e *ArtifactNotFoundError) Unwrap() error { return ErrNotFound }
