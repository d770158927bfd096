package models

import (
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// BytecodeObject represents bytecode information in a compiler artifact
type BytecodeObject struct {
	Object         string         `json:"object"`
	SourceMap      string         `json:"sourceMap,omitempty"`
	LinkReferences map[string]any `json:"linkReferences,omitempty"`
}

// Artifact is a compiled contract as the deployer needs it: ABI, bytecode and storage layout
type Artifact struct {
	Name             string          `json:"contractName"`
	SourceName       string          `json:"sourceName,omitempty"`
	Path             string          `json:"-"`
	ABI              json.RawMessage `json:"abi"`
	Bytecode         string          `json:"bytecode"`
	DeployedBytecode string          `json:"deployedBytecode"`
	StorageLayout    *StorageLayout  `json:"storageLayout,omitempty"`
	CompilerVersion  string          `json:"compilerVersion,omitempty"`

	parsed *abi.ABI
}

// ParsedABI parses and caches the artifact ABI
func (a *Artifact) ParsedABI() (*abi.ABI, error) {
	if a.parsed != nil {
		return a.parsed, nil
	}
	raw := a.ABI
	if len(raw) == 0 {
		raw = json.RawMessage("[]")
	}
	parsed, err := abi.JSON(strings.NewReader(string(raw)))
	if err != nil {
		return nil, err
	}
	a.parsed = &parsed
	return a.parsed, nil
}

// CreationCode returns the decoded creation bytecode, nil when it is empty or unlinked
func (a *Artifact) CreationCode() []byte {
	return decodeBytecode(a.Bytecode)
}

// RuntimeCode returns the decoded runtime bytecode, nil when it is empty or unlinked
func (a *Artifact) RuntimeCode() []byte {
	return decodeBytecode(a.DeployedBytecode)
}

func decodeBytecode(s string) []byte {
	s = strings.TrimSpace(s)
	if s == "" || s == "0x" || strings.Contains(s, "__") {
		return nil
	}
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil
	}
	return b
}
