package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ConfigValueKind is one of the typed mappings held by the Config registry contract
type ConfigValueKind string

const (
	ConfigBytes32      ConfigValueKind = "bytes32"
	ConfigUint256      ConfigValueKind = "uint256"
	ConfigBool         ConfigValueKind = "bool"
	ConfigAddress      ConfigValueKind = "address"
	ConfigUintArray    ConfigValueKind = "uintArray"
	ConfigAddressArray ConfigValueKind = "addressArray"
)

// ConfigContract is the deployment name of the registry
const ConfigContract = "Config"

var configMethods = map[ConfigValueKind][2]string{
	ConfigBytes32:      {"setBytes32", "keyToBytes32"},
	ConfigUint256:      {"setUint256", "keyToUint256"},
	ConfigBool:         {"setBool", "keyToBool"},
	ConfigAddress:      {"setAddress", "keyToAddress"},
	ConfigUintArray:    {"setUintArray", "keyToUintArray"},
	ConfigAddressArray: {"setAddressArray", "keyToAddressArray"},
}

// ConfigValueKinds returns all kinds in declaration order
func ConfigValueKinds() []ConfigValueKind {
	return []ConfigValueKind{ConfigBytes32, ConfigUint256, ConfigBool, ConfigAddress, ConfigUintArray, ConfigAddressArray}
}

// ParseConfigValueKind accepts kind names case-insensitively, with or without the "[]" array form
func ParseConfigValueKind(s string) (ConfigValueKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bytes32":
		return ConfigBytes32, nil
	case "uint256", "uint":
		return ConfigUint256, nil
	case "bool":
		return ConfigBool, nil
	case "address":
		return ConfigAddress, nil
	case "uintarray", "uint256[]", "uint[]":
		return ConfigUintArray, nil
	case "addressarray", "address[]":
		return ConfigAddressArray, nil
	}
	return "", fmt.Errorf("unknown config value kind %q", s)
}

// Setter returns the registry setter for the kind
func (k ConfigValueKind) Setter() string { return configMethods[k][0] }

// Getter returns the registry getter for the kind
func (k ConfigValueKind) Getter() string { return configMethods[k][1] }

// IsArray reports whether values of the kind are read element by element
func (k ConfigValueKind) IsArray() bool {
	return k == ConfigUintArray || k == ConfigAddressArray
}

// ConfigKey hashes a human-readable key name the way the registry expects (keccak256 of the UTF-8 bytes)
func ConfigKey(name string) common.Hash {
	return crypto.Keccak256Hash([]byte(name))
}
