package relay

import "time"

const (
	// DefaultRequestsPerSecond is the client-side rate limit
	DefaultRequestsPerSecond = 5

	// NotYetSentinel is the relay's answer while no release hash is stored
	NotYetSentinel = "no transaction hash stored"

	// CodeBusy is the relay error code for a proof already being processed
	CodeBusy = "busy"

	tokenTTL = 5 * time.Minute
)

// Methods names the relay entry points
type Methods struct {
	SubmitProof    string
	MonitorForward string
	MonitorReverse string
	ReleaseForward string
	ReleaseReverse string
}

// DefaultMethods are the entry points of the reference relay deployment
func DefaultMethods() Methods {
	return Methods{
		SubmitProof:    "update_block_number",
		MonitorForward: "monitor_evm_nft",
		MonitorReverse: "monitor_evm_nft_reverse",
		ReleaseForward: "holesky_txn",
		ReleaseReverse: "sepolia_txn",
	}
}
