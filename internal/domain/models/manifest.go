package models

import (
	"strings"
)

// ManifestVersion is the on-disk format version written into every manifest
const ManifestVersion = "3.2"

// ProxyKindTransparent is the only proxy kind this tool deploys
const ProxyKindTransparent = "transparent"

// Manifest is the per-network record of implementation versions and proxies
type Manifest struct {
	ManifestVersion string                    `json:"manifestVersion"`
	Impls           map[string]ImplDeployment `json:"impls"`
	Proxies         []ProxyRecord             `json:"proxies"`
}

// ImplDeployment is one implementation version recorded in the manifest
type ImplDeployment struct {
	Address string        `json:"address"`
	TxHash  string        `json:"txHash,omitempty"`
	Layout  StorageLayout `json:"layout"`
}

// ProxyRecord is a proxy recorded in the manifest
type ProxyRecord struct {
	Address string `json:"address"`
	TxHash  string `json:"txHash,omitempty"`
	Kind    string `json:"kind"`
}

// NewManifest returns an empty manifest in the current format
func NewManifest() *Manifest {
	return &Manifest{
		ManifestVersion: ManifestVersion,
		Impls:           make(map[string]ImplDeployment),
		Proxies:         []ProxyRecord{},
	}
}

// Normalize fills nil collections left by decoding
func (m *Manifest) Normalize() *Manifest {
	if m.ManifestVersion == "" {
		m.ManifestVersion = ManifestVersion
	}
	if m.Impls == nil {
		m.Impls = make(map[string]ImplDeployment)
	}
	if m.Proxies == nil {
		m.Proxies = []ProxyRecord{}
	}
	return m
}

// ImplByAddress finds the implementation version deployed at address
func (m *Manifest) ImplByAddress(address string) (string, *ImplDeployment, bool) {
	for version, impl := range m.Impls {
		if strings.EqualFold(impl.Address, address) {
			impl := impl
			return version, &impl, true
		}
	}
	return "", nil, false
}

// AddProxy appends the proxy, replacing an existing record for the same address
func (m *Manifest) AddProxy(p ProxyRecord) {
	for i, existing := range m.Proxies {
		if strings.EqualFold(existing.Address, p.Address) {
			m.Proxies[i] = p
			return
		}
	}
	m.Proxies = append(m.Proxies, p)
}

// Clone returns a deep enough copy for read-modify-write cycles
func (m *Manifest) Clone() *Manifest {
	out := &Manifest{
		ManifestVersion: m.ManifestVersion,
		Impls:           make(map[string]ImplDeployment, len(m.Impls)),
		Proxies:         append([]ProxyRecord{}, m.Proxies...),
	}
	for k, v := range m.Impls {
		out.Impls[k] = v
	}
	return out
}
