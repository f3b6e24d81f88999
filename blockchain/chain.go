package blockchain

import (
	"context"
	"sync"
	"time"

	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// DefaultPendingWarn is the pool size at which Submit starts warning that
// nobody is mining.
const DefaultPendingWarn = 1000

// Entry is a committed transaction together with the block holding it.
type Entry struct {
	Transaction
	BlockIndex uint64
	BlockHash  BlockID
	Timestamp  int64
}

// Option configures a Chain.
type Option func(*Chain)

// WithSealer signs every mined block with the given sealer.
func WithSealer(s *Sealer) Option {
	return func(c *Chain) {
		c.sealer = s
	}
}

// WithPendingWarn sets the pool size that triggers a warning. Zero disables
// the warning.
func WithPendingWarn(n int) Option {
	return func(c *Chain) {
		c.pendingWarn = n
	}
}

// WithClock replaces the time source used for block timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Chain) {
		c.now = now
	}
}

// Chain is the in-memory ledger. It starts at the genesis block, only grows
// and is lost when the process stops.
type Chain struct {
	mu sync.RWMutex
	// commitMu serializes whole snapshot-mine-append cycles.
	commitMu sync.Mutex

	blocks  []*Block
	pending []Transaction

	difficulty  int
	sealer      *Sealer
	pendingWarn int
	now         func() time.Time
}

// NewChain returns a chain holding only the genesis block.
func NewChain(difficulty int, opts ...Option) (*Chain, error) {
	if !ValidDifficulty(difficulty) {
		return nil, xerrors.Errorf("difficulty %d: %w", difficulty, ErrInvalidDifficulty)
	}
	c := &Chain{
		blocks:      []*Block{GetGenesisBlock()},
		pending:     make([]Transaction, 0),
		difficulty:  difficulty,
		pendingWarn: DefaultPendingWarn,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Difficulty returns the number of leading '0' hex characters required.
func (c *Chain) Difficulty() int {
	return c.difficulty
}

// Submit appends a transaction to the pending pool.
func (c *Chain) Submit(tx Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, tx)
	if c.pendingWarn > 0 && len(c.pending)%c.pendingWarn == 0 {
		log.Warnf("pending pool holds %d transactions, is anyone mining?", len(c.pending))
	}
	log.Lvlf3("Submitted %s=%s by %s", tx.Subject, tx.RecordedValue, tx.Actor)
}

// SnapshotPending returns a copy of the pending pool in submission order.
func (c *Chain) SnapshotPending() []Transaction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyTransactions(c.pending)
}

// PendingLen returns the size of the pending pool.
func (c *Chain) PendingLen() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pending)
}

// Length returns the number of blocks, genesis included.
func (c *Chain) Length() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

// Latest returns a copy of the last block.
func (c *Chain) Latest() *Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks[len(c.blocks)-1].Copy()
}

// Blocks returns copies of all blocks, genesis first.
func (c *Chain) Blocks() []*Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	blocks := make([]*Block, len(c.blocks))
	for i, b := range c.blocks {
		blocks[i] = b.Copy()
	}
	return blocks
}

// BlockByIndex returns a copy of the block at index.
func (c *Chain) BlockByIndex(index uint64) (*Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if index >= uint64(len(c.blocks)) {
		return nil, xerrors.Errorf("no block at index %d", index)
	}
	return c.blocks[index].Copy(), nil
}

// CreateBlock assembles the block following the current tip from the
// pending pool. The pool is left untouched.
func (c *Chain) CreateBlock(nonce uint64, prev, hash BlockID) *Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	last := c.blocks[len(c.blocks)-1]
	return &Block{
		Index:        last.Index + 1,
		Timestamp:    c.timestamp(last),
		Transactions: copyTransactions(c.pending),
		Nonce:        nonce,
		PrevBlock:    prev.Copy(),
		Hash:         hash.Copy(),
	}
}

// Append pushes a block after the current tip and removes its transactions
// from the pending pool. The block must pass the same checks as Verify: a
// block that does not extend the tip, misses the difficulty or carries a bad
// seal is an integrity error and the chain is left as it was.
func (c *Chain) Append(b *Block) error {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	b = b.Copy()
	if err := c.appendLocked(b); err != nil {
		return err
	}
	for _, tx := range b.Transactions {
		if i := indexOf(c.pending, tx); i >= 0 {
			c.pending = removeAt(c.pending, i)
		}
	}
	return nil
}

func (c *Chain) appendLocked(b *Block) error {
	if err := verifyBlock(c.blocks[len(c.blocks)-1], b, c.difficulty); err != nil {
		return err
	}
	c.blocks = append(c.blocks, b)
	return nil
}

// Withdraw takes tx back out of the pending pool once any commit in progress
// has finished. When that commit already holds tx, the committed entry is
// returned with true and nothing is removed.
func (c *Chain) Withdraw(tx Transaction) (Entry, bool) {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := lastIndexOf(c.pending, tx); i >= 0 {
		c.pending = removeAt(c.pending, i)
		log.Lvlf3("Withdrew %s=%s by %s", tx.Subject, tx.RecordedValue, tx.Actor)
		return Entry{}, false
	}
	for i := len(c.blocks) - 1; i >= 0; i-- {
		b := c.blocks[i]
		if lastIndexOf(b.Transactions, tx) >= 0 {
			return newEntry(b, tx), true
		}
	}
	return Entry{}, false
}

func indexOf(txs []Transaction, tx Transaction) int {
	for i := range txs {
		if txs[i] == tx {
			return i
		}
	}
	return -1
}

func lastIndexOf(txs []Transaction, tx Transaction) int {
	for i := len(txs) - 1; i >= 0; i-- {
		if txs[i] == tx {
			return i
		}
	}
	return -1
}

// removeAt returns a new slice without txs[i].
func removeAt(txs []Transaction, i int) []Transaction {
	rest := make([]Transaction, 0, len(txs)-1)
	rest = append(rest, txs[:i]...)
	return append(rest, txs[i+1:]...)
}

// MineNext commits the pending pool into a new block. The pool is
// snapshotted, a nonce is searched, the block is appended and exactly the
// snapshotted transactions leave the pool; transactions submitted during the
// search wait for the next block. When ctx is done before a nonce is found
// nothing changes.
func (c *Chain) MineNext(ctx context.Context) (*Block, error) {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	c.mu.RLock()
	last := c.blocks[len(c.blocks)-1]
	txs := copyTransactions(c.pending)
	c.mu.RUnlock()
	if len(txs) == 0 {
		return nil, ErrNothingToMine
	}

	data := BlockData{Index: last.Index + 1, Transactions: txs}
	start := time.Now()
	nonce, hash, err := Mine(ctx, last.Hash, data, c.difficulty)
	if err != nil {
		return nil, xerrors.Errorf("mining block %d: %w", data.Index, err)
	}
	block := &Block{
		Index:        data.Index,
		Timestamp:    c.timestamp(last),
		Transactions: txs,
		Nonce:        nonce,
		PrevBlock:    last.Hash.Copy(),
		Hash:         hash,
	}
	if c.sealer != nil {
		if err := c.sealer.Seal(block); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.appendLocked(block); err != nil {
		log.Error("mined block rejected:", err)
		return nil, err
	}
	rest := make([]Transaction, len(c.pending)-len(txs))
	copy(rest, c.pending[len(txs):])
	c.pending = rest
	log.Lvlf2("Mined block %d / %s with nonce %d in %v", block.Index, block.Hash, nonce, time.Since(start))
	return block.Copy(), nil
}

func (c *Chain) timestamp(last *Block) int64 {
	ts := c.now().UnixNano()
	if ts < last.Timestamp {
		return last.Timestamp
	}
	return ts
}

// FindLatest returns the most recent entry for subject: blocks are scanned
// from the tip down and, inside a block, from the last transaction to the
// first.
func (c *Chain) FindLatest(subject string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := len(c.blocks) - 1; i >= 0; i-- {
		b := c.blocks[i]
		for j := len(b.Transactions) - 1; j >= 0; j-- {
			if b.Transactions[j].Subject == subject {
				return newEntry(b, b.Transactions[j]), true
			}
		}
	}
	return Entry{}, false
}

// History returns every committed entry for subject, oldest first.
func (c *Chain) History(subject string) []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var entries []Entry
	for _, b := range c.blocks {
		for _, tx := range b.Transactions {
			if tx.Subject == subject {
				entries = append(entries, newEntry(b, tx))
			}
		}
	}
	return entries
}

func newEntry(b *Block, tx Transaction) Entry {
	return Entry{
		Transaction: tx,
		BlockIndex:  b.Index,
		BlockHash:   b.Hash.Copy(),
		Timestamp:   b.Timestamp,
	}
}

// ValidateChain reports whether Verify finds the chain intact.
func (c *Chain) ValidateChain() bool {
	return c.Verify() == nil
}

// Verify walks the whole chain and returns an error wrapping ErrIntegrity for
// the first block that does not hold.
func (c *Chain) Verify() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return VerifyBlocks(c.blocks, c.difficulty)
}
