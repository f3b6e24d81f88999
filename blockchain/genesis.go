package blockchain

// genesisTimestamp is 2024-01-01 00:00:00 UTC in unix nanoseconds.
const genesisTimestamp = 1704067200 * int64(1e9)

// genesisBlock anchors every chain. Its hash is not required to meet the
// difficulty.
var genesisBlock = newGenesisBlock()

func newGenesisBlock() *Block {
	block := &Block{
		Index:        0,
		Timestamp:    genesisTimestamp,
		Transactions: make([]Transaction, 0),
		Nonce:        0,
		PrevBlock:    SentinelHash(),
	}
	hash, err := block.CalculateHash()
	if err != nil {
		panic(err)
	}
	block.Hash = hash
	return block
}

// GetGenesisBlock returns a copy of the genesis block.
func GetGenesisBlock() *Block {
	return genesisBlock.Copy()
}
