package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const rewardPoolABIJSON = `[
	{"type":"function","name":"merkleRoot","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]},
	{"type":"function","name":"claimed","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"updateMerkleRoot","stateMutability":"nonpayable","inputs":[{"name":"newRoot","type":"bytes32"}],"outputs":[]}
]`

const erc20ABIJSON = `[
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const mintABIJSON = `[
	{"type":"function","name":"mintPrice","stateMutability":"view","inputs":[{"name":"duration","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"sponsoredMint","stateMutability":"nonpayable","inputs":[
		{"name":"to","type":"address"},
		{"name":"sessionId","type":"string"},
		{"name":"metadataURI","type":"string"},
		{"name":"displayName","type":"string"},
		{"name":"message","type":"string"},
		{"name":"duration","type":"uint256"}
	],"outputs":[{"name":"tokenId","type":"uint256"}]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"tokenId","type":"uint256","indexed":true}
	]}
]`

var (
	rewardPoolABI = mustParseABI(rewardPoolABIJSON)
	erc20ABI      = mustParseABI(erc20ABIJSON)
	mintABI       = mustParseABI(mintABIJSON)
)

func mustParseABI(raw string) *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("invalid contract ABI: " + err.Error())
	}
	return &parsed
}
