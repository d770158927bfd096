package upgrades

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/kikiverse/kiki-deploy/internal/domain/models"
)

// Version hashes creation bytecode the way the OpenZeppelin upgrades manifest keys it:
// keccak256 as bare lowercase hex, with and without the trailing CBOR metadata
func Version(bytecode []byte) models.Version {
	stripped := trimMetadata(bytecode)
	return models.Version{
		WithMetadata:          hashBytecode(bytecode),
		WithoutMetadata:       hashBytecode(stripped),
		LinkedWithoutMetadata: hashBytecode(stripped),
	}
}

func hashBytecode(b []byte) string {
	return hex.EncodeToString(crypto.Keccak256(b))
}

// trimMetadata removes the CBOR metadata solc appends to bytecode. Its length is
// stored big-endian in the final two bytes; implausible lengths leave the code as is.
func trimMetadata(code []byte) []byte {
	if len(code) < 2 {
		return code
	}
	n := int(code[len(code)-2])<<8 | int(code[len(code)-1])
	if n+2 > len(code) {
		return code
	}
	return code[:len(code)-n-2]
}
