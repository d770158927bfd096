package upgrades

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/domain/models"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

// Checks that can be switched off per deployment through unsafe_allow
const (
	AllowConstructor  = "constructor"
	AllowSelfdestruct = "selfdestruct"
	AllowDelegatecall = "delegatecall"
)

const (
	opPush1        = 0x60
	opPush32       = 0x7f
	opDelegatecall = 0xf4
	opInvalid      = 0xfe
	opSelfdestruct = 0xff
)

// Validator implements the upgrade-safety checks run before any proxy deployment
type Validator struct {
	log *slog.Logger
}

var _ usecase.UpgradeValidator = (*Validator)(nil)

// NewValidator creates a new Validator
func NewValidator(log *slog.Logger) *Validator {
	if log == nil {
		log = slog.Default()
	}
	return &Validator{log: log.With("component", "upgrades")}
}

func (v *Validator) Version(bytecode []byte) models.Version {
	return Version(bytecode)
}

// ValidateImplementation rejects implementations that cannot run behind a proxy: a
// constructor taking arguments never runs in the proxy's context, and selfdestruct or
// delegatecall in the runtime code can destroy the implementation under every proxy
func (v *Validator) ValidateImplementation(artifact *models.Artifact, unsafeAllow []string) error {
	if artifact.CreationCode() == nil {
		return fmt.Errorf("%w: %s", domain.ErrMissingBytecode, artifact.Name)
	}
	parsed, err := artifact.ParsedABI()
	if err != nil {
		return fmt.Errorf("failed to parse ABI of %s: %w", artifact.Name, err)
	}

	var problems []string
	if len(parsed.Constructor.Inputs) > 0 && !lo.Contains(unsafeAllow, AllowConstructor) {
		problems = append(problems, "constructor takes arguments, use an initializer")
	}

	ops := scanOpcodes(trimMetadata(artifact.RuntimeCode()))
	if ops[opSelfdestruct] && !lo.Contains(unsafeAllow, AllowSelfdestruct) {
		problems = append(problems, "runtime code contains selfdestruct")
	}
	if ops[opDelegatecall] && !lo.Contains(unsafeAllow, AllowDelegatecall) {
		problems = append(problems, "runtime code contains delegatecall")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s: %s", domain.ErrUnsafeImplementation, artifact.Name, strings.Join(problems, "; "))
	}
	v.log.Debug("implementation is upgrade safe", "contract", artifact.Name, "allowed", unsafeAllow)
	return nil
}

// AssertStorageUpgradeSafe fails with a *domain.UnsafeUpgradeError listing every
// incompatible storage change
func (v *Validator) AssertStorageUpgradeSafe(name string, original, updated *models.StorageLayout) error {
	if original == nil || updated == nil {
		return fmt.Errorf("%w: %s", domain.ErrMissingLayout, name)
	}
	changes := CompareLayouts(original, updated)
	if len(changes) > 0 {
		return &domain.UnsafeUpgradeError{Name: name, Changes: changes}
	}
	return nil
}

// scanOpcodes returns the opcodes present in code, skipping PUSH immediates. Scanning
// stops at the first INVALID, which solc places before the data section (embedded
// creation code of `new X()`, constants), so data bytes are not read as opcodes.
func scanOpcodes(code []byte) map[byte]bool {
	seen := make(map[byte]bool)
	for i := 0; i < len(code); i++ {
		op := code[i]
		if op == opInvalid {
			break
		}
		seen[op] = true
		if op >= opPush1 && op <= opPush32 {
			i += int(op-opPush1) + 1
		}
	}
	return seen
}
