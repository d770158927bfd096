package models

import (
	"math/big"
)

// StorageLayout is the solc storageLayout output for a single contract
type StorageLayout struct {
	Storage []StorageItem       `json:"storage"`
	Types   map[string]TypeItem `json:"types"`
}

// StorageItem is one state variable and the slot it occupies
type StorageItem struct {
	ASTID    int64  `json:"astId,omitempty"`
	Contract string `json:"contract"`
	Label    string `json:"label"`
	Offset   uint64 `json:"offset"`
	Slot     string `json:"slot"`
	Type     string `json:"type"`
}

// TypeItem describes a type referenced from the storage section
type TypeItem struct {
	Encoding      string        `json:"encoding"`
	Label         string        `json:"label"`
	NumberOfBytes string        `json:"numberOfBytes"`
	Base          string        `json:"base,omitempty"`
	Key           string        `json:"key,omitempty"`
	Value         string        `json:"value,omitempty"`
	Members       []StorageItem `json:"members,omitempty"`
}

// SlotNumber parses the decimal slot string
func (s StorageItem) SlotNumber() *big.Int {
	n, ok := new(big.Int).SetString(s.Slot, 10)
	if !ok {
		return new(big.Int)
	}
	return n
}

// Size returns the byte size of the item's type, 32 when unknown
func (l *StorageLayout) Size(item StorageItem) uint64 {
	t, ok := l.Types[item.Type]
	if !ok {
		return 32
	}
	n, ok := new(big.Int).SetString(t.NumberOfBytes, 10)
	if !ok || !n.IsUint64() {
		return 32
	}
	return n.Uint64()
}

// End returns the first byte position (slot*32+offset) after the last item
func (l *StorageLayout) End() *big.Int {
	end := new(big.Int)
	for _, item := range l.Storage {
		pos := bytePosition(item)
		pos.Add(pos, new(big.Int).SetUint64(l.Size(item)))
		if pos.Cmp(end) > 0 {
			end = pos
		}
	}
	return end
}

// Start returns the byte position of an item
func (l *StorageLayout) Start(item StorageItem) *big.Int {
	return bytePosition(item)
}

func bytePosition(item StorageItem) *big.Int {
	pos := new(big.Int).Mul(item.SlotNumber(), big.NewInt(32))
	return pos.Add(pos, new(big.Int).SetUint64(item.Offset))
}
