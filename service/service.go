package service

/*
The service.go ties the ledger, the mining worker, the pack store and the
HTTP API together. One Service owns exactly one chain.
*/

import (
	"context"
	"net/http"
	"sync"
	"time"

	watercompany "github.com/favour-abass/waterCompanyBackend"
	bc "github.com/favour-abass/waterCompanyBackend/blockchain"
	"github.com/favour-abass/waterCompanyBackend/mining"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// Ledger is the part of the chain read by the service.
type Ledger interface {
	Length() int
	PendingLen() int
	Difficulty() int
	Blocks() []*bc.Block
	SnapshotPending() []bc.Transaction
	FindLatest(subject string) (bc.Entry, bool)
	Verify() error
}

// Service is the water pack tracking service.
type Service struct {
	config *Config

	db *PackDB

	chain Ledger

	miner *mining.Miner

	recorder Recorder

	sessions *sessions

	// mutex serializes pack transitions.
	mutex sync.Mutex

	server *http.Server

	closeOnce sync.Once
}

// New opens the store, builds the chain from genesis and starts mining.
func New(config *Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	db, err := OpenPackDB(config.DBPath)
	if err != nil {
		return nil, err
	}

	opts := []bc.Option{bc.WithPendingWarn(config.PendingWarn)}
	if config.Seal {
		sealer, err := bc.NewSealer()
		if err != nil {
			db.Close()
			return nil, xerrors.Errorf("creating sealer: %w", err)
		}
		log.Lvl2("Sealing blocks with", sealer.PublicKey())
		opts = append(opts, bc.WithSealer(sealer))
	}
	chain, err := bc.NewChain(config.Difficulty, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Service{
		config:   config,
		db:       db,
		chain:    chain,
		sessions: newSessions(config.SessionTTL.Duration),
	}
	if err := s.bootstrapAdmin(); err != nil {
		db.Close()
		return nil, err
	}
	s.miner = mining.New(chain, config.MineInterval.Duration, s.blockCommitted)
	s.recorder = &ledgerRecorder{
		chain:   chain,
		miner:   s.miner,
		timeout: config.MineTimeout.Duration,
	}
	s.miner.Start()
	log.Infof("%s started with difficulty %d", watercompany.ServiceName, config.Difficulty)
	return s, nil
}

func (s *Service) blockCommitted(b *bc.Block) {
	log.Lvlf1("Block %d / %s committed %d transaction(s)", b.Index, b.Hash, len(b.Transactions))
}

// ListenAndServe serves the HTTP API on the configured address until
// Shutdown is called.
func (s *Service) ListenAndServe() error {
	s.server = &http.Server{
		Addr:              s.config.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("Listening on", s.config.HTTPAddr)
	err := s.server.ListenAndServe()
	if xerrors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server, then the miner and the store.
func (s *Service) Shutdown(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close stops the miner and closes the store. The ledger is dropped.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.miner.Stop()
		err = s.db.Close()
	})
	return err
}
