package domain

// Parent contract surfaces whose state-mutating functions are inherited and therefore
// not counted against a contract's own expected set. Entries are canonical signatures.
var ParentMutativeFunctions = map[string][]string{
	"Ownable": {
		"renounceOwnership()",
		"transferOwnership(address)",
	},
	"ERC20": {
		"approve(address,uint256)",
		"decreaseAllowance(address,uint256)",
		"increaseAllowance(address,uint256)",
		"transfer(address,uint256)",
		"transferFrom(address,address,uint256)",
	},
	"ERC721":           erc721Mutative,
	"ERC721Enumerable": erc721Mutative,
	"ERC721Burnable":   append([]string{"burn(uint256)"}, erc721Mutative...),
	"VRFConsumerBaseV2": {
		"rawFulfillRandomWords(uint256,uint256[])",
	},
	"ReentrancyGuard": {},
	"TransparentUpgradeableProxy": {
		"admin()",
		"changeAdmin(address)",
		"implementation()",
		"upgradeTo(address)",
		"upgradeToAndCall(address,bytes)",
	},
}

var erc721Mutative = []string{
	"approve(address,uint256)",
	"safeTransferFrom(address,address,uint256)",
	"safeTransferFrom(address,address,uint256,bytes)",
	"setApprovalForAll(address,bool)",
	"transferFrom(address,address,uint256)",
}

// Capabilities is the expected state-mutating surface of a contract
type Capabilities struct {
	Contract    string
	Mutative    []string
	Parents     []string
	HasFallback bool
}

// RestrictedFunction is a function only one named account may call, with sample
// arguments written in plan argument syntax
type RestrictedFunction struct {
	Method string
	Role   string
	Args   []any
}

// ContractCapabilities is the static capability table of the Kiki contracts
var ContractCapabilities = map[string]Capabilities{
	"Config": {
		Contract: "Config",
		Mutative: []string{"setAddress", "setAddressArray", "setBool", "setBytes32", "setUint256", "setUintArray"},
		Parents:  []string{"Ownable"},
	},
	"Kiki": {
		Contract: "Kiki",
		Mutative: []string{},
		Parents:  []string{"ERC20"},
	},
	"KikiNft": {
		Contract: "KikiNft",
		Mutative: []string{"addMinter", "mint", "removeMinter"},
		Parents:  []string{"ERC721Enumerable", "Ownable"},
	},
	"KikiBlindBox": {
		Contract: "KikiBlindBox",
		Mutative: []string{"buy", "open", "setKikiBoxes"},
		Parents:  []string{"Ownable", "VRFConsumerBaseV2", "ERC721Burnable", "ReentrancyGuard"},
	},
}

// RestrictedFunctions lists owner-only functions per contract
var RestrictedFunctions = map[string][]RestrictedFunction{
	"Config": {
		{Method: "setBytes32", Role: RoleOwner, Args: []any{"id(keyToBytes32)", "id(bytes32value)"}},
		{Method: "setUint256", Role: RoleOwner, Args: []any{"id(keyToUint256)", 121341234}},
		{Method: "setBool", Role: RoleOwner, Args: []any{"id(keyToBool)", true}},
		{Method: "setAddress", Role: RoleOwner, Args: []any{"id(keyToAddress)", "0xA2959D3F95eAe5dC7D70144Ce1b73b403b7EB6E0"}},
		{Method: "setUintArray", Role: RoleOwner, Args: []any{"id(keyToUintArray)", []any{123, 45, 789, 10}}},
		{Method: "setAddressArray", Role: RoleOwner, Args: []any{"id(keyToAddressArray)", []any{
			"0xA2959D3F95eAe5dC7D70144Ce1b73b403b7EB6E0",
			"0x36dE7f91c0015172985071Bf42fA4D4b87b80a50",
		}}},
	},
}
