package orders

import "ordertracker/apps/ordertracker/internal/model"

// DeploymentBlocks is the block each chain's settlement contract was deployed at.
// No order can exist before it, so it seeds the reconciliation watermark.
var DeploymentBlocks = map[model.ChainID]uint64{
	model.Mainnet: 12593265,
	model.Rinkeby: 8727415,
	model.XDai:    16465100,
}

func DeploymentBlock(chainID model.ChainID) uint64 {
	return DeploymentBlocks[chainID]
}
