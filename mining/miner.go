package mining

import (
	"context"
	"sync"
	"time"

	bc "github.com/favour-abass/waterCompanyBackend/blockchain"

	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// ErrStopped is returned when the miner is not running.
var ErrStopped = xerrors.New("miner stopped")

// Listener is called with every block the miner commits.
type Listener func(block *bc.Block)

type request struct {
	ctx   context.Context
	reply chan result
}

type result struct {
	block *bc.Block
	err   error
}

// Miner runs the proof-of-work search of a chain in its own goroutine so
// that callers only wait for the result. Commits happen one at a time.
type Miner struct {
	sync.Mutex
	started  bool
	chain    *bc.Chain
	interval time.Duration
	requests chan request
	quit     chan struct{}
	done     chan struct{}
	callback Listener
}

// New returns a stopped miner for chain. With a positive interval the miner
// also commits the pending pool on its own whenever it is not empty.
func New(chain *bc.Chain, interval time.Duration, callback Listener) *Miner {
	return &Miner{
		chain:    chain,
		interval: interval,
		callback: callback,
	}
}

// Start launches the mining worker.
func (m *Miner) Start() {
	m.Lock()
	defer m.Unlock()

	// Nothing to do if the miner is already running
	if m.started {
		return
	}

	m.requests = make(chan request)
	m.quit = make(chan struct{})
	m.done = make(chan struct{})
	go m.miningWorker(m.requests, m.quit, m.done)
	m.started = true
	log.Infof("Miner started (difficulty %d, interval %v)", m.chain.Difficulty(), m.interval)
}

// Stop aborts any running search and waits for the worker to exit.
// This function is safe for concurrent access.
func (m *Miner) Stop() {
	m.Lock()
	// Nothing to do if the miner is not currently running
	if !m.started {
		m.Unlock()
		return
	}
	close(m.quit)
	done := m.done
	m.started = false
	m.Unlock()

	<-done
	log.Info("Miner stopped")
}

// Mine asks the worker to commit the pending pool and waits for the block.
// When ctx ends before the worker picks the request up, ctx.Err() is
// returned; once picked up the search itself honours ctx.
func (m *Miner) Mine(ctx context.Context) (*bc.Block, error) {
	m.Lock()
	if !m.started {
		m.Unlock()
		return nil, ErrStopped
	}
	requests, quit := m.requests, m.quit
	m.Unlock()

	reply := make(chan result, 1)
	select {
	case requests <- request{ctx: ctx, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-quit:
		return nil, ErrStopped
	}
	r := <-reply
	return r.block, r.err
}

func (m *Miner) miningWorker(requests chan request, quit, done chan struct{}) {
	defer close(done)
	log.Lvl2("Starting mining worker")

	var tick <-chan time.Time
	if m.interval > 0 {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		tick = ticker.C
	}
out:
	for {
		select {
		case <-quit:
			break out
		case req := <-requests:
			block, err := m.commit(req.ctx, quit)
			req.reply <- result{block: block, err: err}
		case <-tick:
			if m.chain.PendingLen() == 0 {
				continue
			}
			if _, err := m.commit(context.Background(), quit); err != nil && !xerrors.Is(err, bc.ErrNothingToMine) {
				log.Warn("auto mining:", err)
			}
		}
	}
	log.Lvl2("Mining worker done")
}

// commit mines the next block, aborting when parent ends or the miner quits.
func (m *Miner) commit(parent context.Context, quit chan struct{}) (*bc.Block, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	go func() {
		select {
		case <-quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	block, err := m.chain.MineNext(ctx)
	if err != nil {
		return nil, err
	}
	if m.callback != nil {
		m.callback(block.Copy())
	}
	return block, nil
}
