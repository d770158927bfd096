package models

import (
	"encoding/json"
	"strings"
	"time"
)

// DeploymentType represents the type of deployment
type DeploymentType string

const (
	SingletonDeployment      DeploymentType = "SINGLETON"
	ProxyDeployment          DeploymentType = "PROXY"
	ImplementationDeployment DeploymentType = "IMPLEMENTATION"
)

const (
	// ProxySuffix names the record of the proxy contract itself
	ProxySuffix = "_Proxy"
	// ImplementationSuffix names the record of the current implementation
	ImplementationSuffix = "_Implementation"
)

// Deployment is the persisted record of a contract deployed on one network.
// The JSON shape follows hardhat-deploy's deployments/<network>/<Name>.json files.
type Deployment struct {
	Name            string          `json:"-"`
	ContractName    string          `json:"contractName"`
	Address         string          `json:"address"`
	ABI             json.RawMessage `json:"abi"`
	TransactionHash string          `json:"transactionHash"`
	BlockNumber     uint64          `json:"blockNumber,omitempty"`
	Args            []any           `json:"args"`
	ArgsData        string          `json:"argsData,omitempty"`
	Bytecode        string          `json:"bytecode,omitempty"`
	BytecodeHash    string          `json:"bytecodeHash"`
	Type            DeploymentType  `json:"type"`
	ProxyInfo       *ProxyInfo      `json:"proxyInfo,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// ProxyInfo contains proxy-specific information
type ProxyInfo struct {
	Kind           string         `json:"kind"`
	Implementation string         `json:"implementation"`
	Admin          string         `json:"admin,omitempty"`
	History        []ProxyUpgrade `json:"history"`
}

// ProxyUpgrade represents a proxy upgrade event
type ProxyUpgrade struct {
	Implementation string    `json:"implementation"`
	TxHash         string    `json:"txHash,omitempty"`
	UpgradedAt     time.Time `json:"upgradedAt"`
}

// IsProxyPart reports whether the record belongs to the internals of a proxied deployment
func (d *Deployment) IsProxyPart() bool {
	return strings.HasSuffix(d.Name, ProxySuffix) || strings.HasSuffix(d.Name, ImplementationSuffix)
}

// StepState records that a plan step ran to completion
type StepState struct {
	Outputs     map[string]string `json:"outputs,omitempty"`
	Fingerprint string            `json:"fingerprint"`
	Address     string            `json:"address,omitempty"`
	CompletedAt time.Time         `json:"completedAt"`
}
