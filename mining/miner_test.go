package mining

import (
	"context"
	"sync"
	"testing"
	"time"

	bc "github.com/favour-abass/waterCompanyBackend/blockchain"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func newChain(t *testing.T, difficulty int) *bc.Chain {
	chain, err := bc.NewChain(difficulty)
	require.NoError(t, err)
	return chain
}

func submit(t *testing.T, chain *bc.Chain, subject string) {
	tx, err := bc.NewTransaction(subject, "CREATED", "ADMIN")
	require.NoError(t, err)
	chain.Submit(tx)
}

func TestMinerMine(t *testing.T) {
	chain := newChain(t, 2)
	var mu sync.Mutex
	var seen []*bc.Block
	m := New(chain, 0, func(block *bc.Block) {
		mu.Lock()
		seen = append(seen, block)
		mu.Unlock()
	})
	m.Start()
	defer m.Stop()

	submit(t, chain, "WAT-1")
	block, err := m.Mine(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(1), block.Index)
	require.Equal(t, 2, chain.Length())

	mu.Lock()
	require.Len(t, seen, 1)
	require.Equal(t, block.Hash, seen[0].Hash)
	mu.Unlock()

	_, err = m.Mine(context.Background())
	require.True(t, xerrors.Is(err, bc.ErrNothingToMine))
}

func TestMinerStopped(t *testing.T) {
	m := New(newChain(t, 2), 0, nil)
	_, err := m.Mine(context.Background())
	require.Equal(t, ErrStopped, err)

	m.Start()
	m.Start()
	m.Stop()
	m.Stop()
	_, err = m.Mine(context.Background())
	require.Equal(t, ErrStopped, err)
}

func TestMinerStopAbortsSearch(t *testing.T) {
	chain := newChain(t, bc.MaxDifficulty)
	submit(t, chain, "WAT-1")
	m := New(chain, 0, nil)
	m.Start()

	errs := make(chan error, 1)
	go func() {
		_, err := m.Mine(context.Background())
		errs <- err
	}()
	time.Sleep(50 * time.Millisecond)
	m.Stop()

	select {
	case err := <-errs:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("mining was not aborted")
	}
	require.Equal(t, 1, chain.Length())
	require.Equal(t, 1, chain.PendingLen())
}

func TestMinerContextTimeout(t *testing.T) {
	chain := newChain(t, bc.MaxDifficulty)
	submit(t, chain, "WAT-1")
	m := New(chain, 0, nil)
	m.Start()
	defer m.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := m.Mine(ctx)
	require.True(t, xerrors.Is(err, context.DeadlineExceeded))
	require.Equal(t, 1, chain.PendingLen())
}

func TestMinerInterval(t *testing.T) {
	chain := newChain(t, 1)
	blocks := make(chan *bc.Block, 4)
	m := New(chain, 10*time.Millisecond, func(block *bc.Block) {
		blocks <- block
	})
	submit(t, chain, "WAT-1")
	submit(t, chain, "WAT-2")
	m.Start()
	defer m.Stop()

	select {
	case block := <-blocks:
		require.Len(t, block.Transactions, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("interval mining did not commit")
	}
	require.Equal(t, 0, chain.PendingLen())
}
