package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/samber/lo"
)

// CapabilityReport compares a contract's state-mutating surface with its expected one
type CapabilityReport struct {
	Contract    string
	Expected    []string
	Actual      []string
	Missing     []string
	Unexpected  []string
	HasFallback bool
	// FallbackMismatch is set when the presence of a fallback differs from the expectation
	FallbackMismatch bool
}

// Passed reports whether the surface matches exactly
func (r *CapabilityReport) Passed() bool {
	return len(r.Missing) == 0 && len(r.Unexpected) == 0 && !r.FallbackMismatch
}

// CheckCapabilities verifies that contracts expose only the mutative functions they are
// expected to, ignoring functions inherited from known parent contracts
type CheckCapabilities struct {
	artifacts ArtifactRepository
}

// NewCheckCapabilities creates a new CheckCapabilities use case
func NewCheckCapabilities(artifacts ArtifactRepository) *CheckCapabilities {
	return &CheckCapabilities{artifacts: artifacts}
}

// Run checks the named contracts, or every contract in the capability table when none are given
func (uc *CheckCapabilities) Run(ctx context.Context, contracts []string) ([]*CapabilityReport, error) {
	if len(contracts) == 0 {
		contracts = lo.Keys(domain.ContractCapabilities)
		sort.Strings(contracts)
	}

	reports := make([]*CapabilityReport, 0, len(contracts))
	for _, name := range contracts {
		expected, ok := domain.ContractCapabilities[name]
		if !ok {
			return nil, fmt.Errorf("%w: no capability table for %s", domain.ErrNotFound, name)
		}
		report, err := uc.check(ctx, expected)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (uc *CheckCapabilities) check(ctx context.Context, expected domain.Capabilities) (*CapabilityReport, error) {
	artifact, err := uc.artifacts.GetArtifact(ctx, expected.Contract)
	if err != nil {
		return nil, err
	}
	parsed, err := artifact.ParsedABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI of %s: %w", expected.Contract, err)
	}

	inherited := make(map[string]bool)
	for _, parent := range expected.Parents {
		sigs, ok := domain.ParentMutativeFunctions[parent]
		if !ok {
			return nil, fmt.Errorf("%w: unknown parent contract %s", domain.ErrNotFound, parent)
		}
		for _, sig := range sigs {
			inherited[sig] = true
		}
	}

	var actual []string
	for _, m := range parsed.Methods {
		if m.IsConstant() || inherited[m.Sig] {
			continue
		}
		actual = append(actual, m.RawName)
	}
	actual = lo.Uniq(actual)
	sort.Strings(actual)

	want := append([]string{}, expected.Mutative...)
	sort.Strings(want)

	hasFallback := parsed.HasFallback()
	return &CapabilityReport{
		Contract:         expected.Contract,
		Expected:         want,
		Actual:           actual,
		Missing:          lo.Without(want, actual...),
		Unexpected:       lo.Without(actual, want...),
		HasFallback:      hasFallback,
		FallbackMismatch: hasFallback != expected.HasFallback,
	}, nil
}
