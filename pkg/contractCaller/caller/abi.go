package caller

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// DocumentSignerMetaData contains the ABI of the DocumentSigner contract
var DocumentSignerMetaData = &bind.MetaData{
	ABI: `[
	{"type":"function","name":"nonce","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint32"}]},
	{"type":"function","name":"getSigners","stateMutability":"view","inputs":[{"name":"contentHash","type":"bytes32"}],"outputs":[{"name":"","type":"tuple[]","internalType":"struct DocumentSigner.SignerInfo[]","components":[{"name":"signer","type":"address"},{"name":"timestamp","type":"uint256"},{"name":"sender","type":"address"}]}]},
	{"type":"function","name":"verifyStoredSignature","stateMutability":"view","inputs":[{"name":"contentHash","type":"bytes32"},{"name":"signer","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"signDocument","stateMutability":"nonpayable","inputs":[{"name":"contentHash","type":"bytes32"},{"name":"signer","type":"address"},{"name":"signature","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"invalidateSignature","stateMutability":"nonpayable","inputs":[{"name":"contentHash","type":"bytes32"},{"name":"signer","type":"address"},{"name":"signature","type":"bytes"}],"outputs":[]}
]`,
}

// AccreditationRegistryMetaData contains the ABI of the AccreditationRegistry contract
var AccreditationRegistryMetaData = &bind.MetaData{
	ABI: `[
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"isAuditor","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"addAuditor","stateMutability":"nonpayable","inputs":[{"name":"auditor","type":"address"}],"outputs":[]},
	{"type":"function","name":"removeAuditor","stateMutability":"nonpayable","inputs":[{"name":"auditor","type":"address"}],"outputs":[]},
	{"type":"function","name":"addLaboratory","stateMutability":"nonpayable","inputs":[{"name":"laboratory","type":"address"},{"name":"name","type":"string"}],"outputs":[]},
	{"type":"function","name":"setLaboratoryVerificationStatus","stateMutability":"nonpayable","inputs":[{"name":"laboratory","type":"address"},{"name":"isVerified","type":"bool"}],"outputs":[]},
	{"type":"function","name":"getLaboratoryInfo","stateMutability":"view","inputs":[{"name":"laboratory","type":"address"}],"outputs":[{"name":"name","type":"string"},{"name":"isVerified","type":"bool"},{"name":"exists","type":"bool"}]},
	{"type":"function","name":"addModSigner","stateMutability":"nonpayable","inputs":[{"name":"name","type":"string"}],"outputs":[]},
	{"type":"function","name":"setSignerVerificationStatus","stateMutability":"nonpayable","inputs":[{"name":"signer","type":"address"},{"name":"isVerified","type":"bool"}],"outputs":[]},
	{"type":"function","name":"addModAccreditation","stateMutability":"nonpayable","inputs":[{"name":"laboratory","type":"address"},{"name":"name","type":"string"},{"name":"validFrom","type":"uint256"},{"name":"validUntil","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"revokeAccreditation","stateMutability":"nonpayable","inputs":[{"name":"laboratory","type":"address"},{"name":"name","type":"string"}],"outputs":[]},
	{"type":"function","name":"hasValidAccreditation","stateMutability":"view","inputs":[{"name":"laboratory","type":"address"},{"name":"name","type":"string"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"getAccreditationDetails","stateMutability":"view","inputs":[{"name":"laboratory","type":"address"},{"name":"name","type":"string"}],"outputs":[{"name":"name","type":"string"},{"name":"validFrom","type":"uint256"},{"name":"validUntil","type":"uint256"},{"name":"exists","type":"bool"}]},
	{"type":"function","name":"getAllAccreditationsForLaboratory","stateMutability":"view","inputs":[{"name":"laboratory","type":"address"}],"outputs":[{"name":"","type":"tuple[]","internalType":"struct AccreditationRegistry.Accreditation[]","components":[{"name":"name","type":"string"},{"name":"validFrom","type":"uint256"},{"name":"validUntil","type":"uint256"}]}]},
	{"type":"function","name":"signers","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"signerAddress","type":"address"},{"name":"name","type":"string"},{"name":"isVerified","type":"bool"}]}
]`,
}

// DocumentSignerSignerInfo is the tuple returned by getSigners
type DocumentSignerSignerInfo struct {
	Signer    common.Address
	Timestamp *big.Int
	Sender    common.Address
}

// AccreditationRegistryAccreditation is the tuple returned by getAllAccreditationsForLaboratory
type AccreditationRegistryAccreditation struct {
	Name       string
	ValidFrom  *big.Int
	ValidUntil *big.Int
}
