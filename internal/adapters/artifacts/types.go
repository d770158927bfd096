package artifacts

import (
	"encoding/json"

	"github.com/kikiverse/kiki-deploy/internal/domain/models"
)

// rawArtifact decodes both artifact formats: Hardhat stores bytecode as a hex string,
// Foundry as an object with the hex under "object"
type rawArtifact struct {
	ContractName     string                `json:"contractName"`
	SourceName       string                `json:"sourceName"`
	ABI              json.RawMessage       `json:"abi"`
	Bytecode         bytecodeField         `json:"bytecode"`
	DeployedBytecode bytecodeField         `json:"deployedBytecode"`
	StorageLayout    *models.StorageLayout `json:"storageLayout"`
	Metadata         json.RawMessage       `json:"metadata"`
}

type bytecodeField struct {
	models.BytecodeObject
}

func (b *bytecodeField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.Object = s
		return nil
	}
	return json.Unmarshal(data, &b.BytecodeObject)
}

type foundryMetadata struct {
	Compiler struct {
		Version string `json:"version"`
	} `json:"compiler"`
	Settings struct {
		CompilationTarget map[string]string `json:"compilationTarget"`
	} `json:"settings"`
}

// metadata decodes the Foundry metadata, which older versions emit as a JSON string
func (a *rawArtifact) metadata() *foundryMetadata {
	if len(a.Metadata) == 0 {
		return nil
	}
	raw := a.Metadata
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		raw = json.RawMessage(s)
	}
	var m foundryMetadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return &m
}

func (a *rawArtifact) compilerVersion() string {
	if m := a.metadata(); m != nil {
		return m.Compiler.Version
	}
	return ""
}

func (a *rawArtifact) compilationTarget(name string) string {
	m := a.metadata()
	if m == nil {
		return ""
	}
	for source, contract := range m.Settings.CompilationTarget {
		if contract == name {
			return source
		}
	}
	return ""
}
