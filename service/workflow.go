package service

import (
	"context"
	"strings"
	"time"

	watercompany "github.com/favour-abass/waterCompanyBackend"
	bc "github.com/favour-abass/waterCompanyBackend/blockchain"
	"github.com/favour-abass/waterCompanyBackend/mining"
	uuid "github.com/satori/go.uuid"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

var (
	// ErrInvalidTransition is returned when a pack can not move to the
	// requested status from its current one.
	ErrInvalidTransition = xerrors.New("invalid status transition")
	// ErrInvalidReason is returned for an unknown rejection reason.
	ErrInvalidReason = xerrors.New("invalid rejection reason")
)

// Recorder writes status changes to a tamper-evident log and reads them back.
type Recorder interface {
	// Record commits serial=status by actor and returns the committed entry.
	Record(ctx context.Context, serial, status, actor string) (bc.Entry, error)
	// History returns the committed entries of serial, oldest first.
	History(serial string) []bc.Entry
}

// ledgerRecorder records on the embedded chain through the mining worker.
type ledgerRecorder struct {
	chain   *bc.Chain
	miner   *mining.Miner
	timeout time.Duration
}

func (r *ledgerRecorder) Record(ctx context.Context, serial, status, actor string) (bc.Entry, error) {
	tx, err := bc.NewTransaction(serial, status, actor)
	if err != nil {
		return bc.Entry{}, xerrors.Errorf("recording: %w", err)
	}
	r.chain.Submit(tx)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	block, err := r.miner.Mine(ctx)
	if err != nil && !xerrors.Is(err, bc.ErrNothingToMine) {
		// Nothing may reach the ledger for a failed request.
		if entry, committed := r.chain.Withdraw(tx); committed {
			return entry, nil
		}
		return bc.Entry{}, xerrors.Errorf("recording %s=%s: %w", serial, status, err)
	}
	if block != nil {
		for i := len(block.Transactions) - 1; i >= 0; i-- {
			if block.Transactions[i] == tx {
				return bc.Entry{
					Transaction: tx,
					BlockIndex:  block.Index,
					BlockHash:   block.Hash,
					Timestamp:   block.Timestamp,
				}, nil
			}
		}
	}
	// An interval commit may have taken the transaction first.
	if entry, committed := r.chain.Withdraw(tx); committed {
		return entry, nil
	}
	return bc.Entry{}, xerrors.Errorf("%s=%s was not committed", serial, status)
}

func (r *ledgerRecorder) History(serial string) []bc.Entry {
	return r.chain.History(serial)
}

func canTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func packReply(message string, p *Pack) *watercompany.PackReply {
	return &watercompany.PackReply{
		Message:    message,
		SerialCode: p.Serial,
		Status:     p.Status,
		Blockchain: &watercompany.Receipt{
			BlockIndex: p.BlockIndex,
			BlockHash:  bc.BlockID(p.BlockHash).String(),
		},
	}
}

// CreatePack records a new pack as CREATED, first on the ledger then in the
// store.
func (s *Service) CreatePack(ctx context.Context, sess *Session) (*watercompany.PackReply, error) {
	if err := requireRole(sess, RoleAdmin); err != nil {
		return nil, err
	}
	serial := SerialPrefix + uuid.NewV4().String()

	s.mutex.Lock()
	defer s.mutex.Unlock()
	entry, err := s.recorder.Record(ctx, serial, StatusCreated, sess.Username)
	if err != nil {
		return nil, err
	}
	now := time.Now().UnixNano()
	p := &Pack{
		Serial:     serial,
		Status:     StatusCreated,
		CreatedBy:  sess.Username,
		CreatedAt:  now,
		UpdatedAt:  now,
		BlockIndex: entry.BlockIndex,
		BlockHash:  entry.BlockHash,
	}
	if err := s.db.CreatePack(p); err != nil {
		log.Errorf("pack %s is on the ledger but not stored: %v", serial, err)
		return nil, err
	}
	log.Lvlf2("%s created pack %s in block %d", sess.Username, serial, entry.BlockIndex)
	return packReply("Water pack created", p), nil
}

// transition moves a stored pack to status to. Transitions are serialized so
// the status read from the store is still current when it is written back.
func (s *Service) transition(ctx context.Context, sess *Session, serial, to, reason string,
	roles ...string) (*Pack, error) {
	if err := requireRole(sess, roles...); err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	p, err := s.db.GetPack(serial)
	if err != nil {
		return nil, err
	}
	if !canTransition(p.Status, to) {
		return nil, xerrors.Errorf("pack %s is %s, not %s: %w", serial, p.Status, to,
			ErrInvalidTransition)
	}
	entry, err := s.recorder.Record(ctx, serial, to, sess.Username)
	if err != nil {
		return nil, err
	}
	p, err = s.db.UpdatePack(serial, func(p *Pack) error {
		p.Status = to
		p.UpdatedAt = time.Now().UnixNano()
		p.BlockIndex = entry.BlockIndex
		p.BlockHash = entry.BlockHash
		p.RejectionReason = reason
		return nil
	})
	if err != nil {
		log.Errorf("pack %s is %s on the ledger but not in the store: %v", serial, to, err)
		return nil, err
	}
	log.Lvlf2("%s moved pack %s to %s in block %d", sess.Username, serial, to, entry.BlockIndex)
	return p, nil
}

// Test hands a created pack to the inspector.
func (s *Service) Test(ctx context.Context, sess *Session, serial string) (*watercompany.PackReply, error) {
	p, err := s.transition(ctx, sess, serial, StatusInspector, "", RoleInspector, RoleAdmin)
	if err != nil {
		return nil, err
	}
	return packReply("Water pack sent for testing", p), nil
}

// Approve marks an inspected pack as fit for distribution.
func (s *Service) Approve(ctx context.Context, sess *Session, serial string) (*watercompany.PackReply, error) {
	p, err := s.transition(ctx, sess, serial, StatusApproved, "", RoleAdmin)
	if err != nil {
		return nil, err
	}
	return packReply("Water pack approved", p), nil
}

// Reject marks an inspected pack as CONTAMINATED or EXPIRED.
func (s *Service) Reject(ctx context.Context, sess *Session, serial, reason string) (*watercompany.PackReply, error) {
	reason = strings.ToUpper(strings.TrimSpace(reason))
	status, ok := rejections[reason]
	if !ok {
		return nil, xerrors.Errorf("%q: %w", reason, ErrInvalidReason)
	}
	p, err := s.transition(ctx, sess, serial, status, reason, RoleAdmin)
	if err != nil {
		return nil, err
	}
	return packReply("Water pack rejected", p), nil
}

// Distribute marks an approved pack as distributed.
func (s *Service) Distribute(ctx context.Context, sess *Session, serial string) (*watercompany.PackReply, error) {
	p, err := s.transition(ctx, sess, serial, StatusDistributed, "", RoleAdmin)
	if err != nil {
		return nil, err
	}
	return packReply("Water pack distributed", p), nil
}

// Sell marks a distributed pack as sold.
func (s *Service) Sell(ctx context.Context, sess *Session, serial string) (*watercompany.PackReply, error) {
	p, err := s.transition(ctx, sess, serial, StatusSold, "", RoleAdmin)
	if err != nil {
		return nil, err
	}
	return packReply("Water pack sold", p), nil
}

func rejectionReason(status string) string {
	for reason, s := range rejections {
		if s == status {
			return reason
		}
	}
	return ""
}

// Verify rebuilds the state of a pack from the ledger alone. A pack that
// never reached the ledger of this process is not found, and nothing is
// reported from a ledger that fails its integrity check.
func (s *Service) Verify(serial string) (*watercompany.VerifyReply, error) {
	if err := s.chain.Verify(); err != nil {
		log.Error("ledger integrity:", err)
		return nil, xerrors.Errorf("verifying %s: %w", serial, err)
	}
	entries := s.recorder.History(serial)
	if len(entries) == 0 {
		return nil, xerrors.Errorf("pack %s: %w", serial, ErrNotFound)
	}
	first, last := entries[0], entries[len(entries)-1]
	reply := &watercompany.VerifyReply{
		SerialCode:      serial,
		Status:          last.RecordedValue,
		CreatedBy:       first.Actor,
		CreatedAt:       time.Unix(0, first.Timestamp).UTC(),
		LastModifiedAt:  time.Unix(0, last.Timestamp).UTC(),
		RejectionReason: rejectionReason(last.RecordedValue),
		BlockIndex:      last.BlockIndex,
		BlockHash:       last.BlockHash.String(),
		History:         make([]watercompany.HistoryEntry, len(entries)),
	}
	for i, e := range entries {
		reply.History[i] = watercompany.HistoryEntry{
			Status:     e.RecordedValue,
			Actor:      e.Actor,
			BlockIndex: e.BlockIndex,
			BlockHash:  e.BlockHash.String(),
			Timestamp:  time.Unix(0, e.Timestamp).UTC(),
		}
	}
	return reply, nil
}

// Stats counts packs per status and reports the ledger size.
func (s *Service) Stats() (*watercompany.StatsReply, error) {
	byStatus, err := s.db.PackStats()
	if err != nil {
		return nil, err
	}
	total := 0
	for _, n := range byStatus {
		total += n
	}
	return &watercompany.StatsReply{
		TotalWaterPacks:     total,
		ByStatus:            byStatus,
		ChainLength:         s.chain.Length(),
		PendingTransactions: s.chain.PendingLen(),
		Difficulty:          s.chain.Difficulty(),
		BlockchainNetwork:   s.config.Network,
	}, nil
}

func transactionInfos(txs []bc.Transaction) []watercompany.TransactionInfo {
	infos := make([]watercompany.TransactionInfo, len(txs))
	for i, tx := range txs {
		infos[i] = watercompany.TransactionInfo{
			Subject:       tx.Subject,
			RecordedValue: tx.RecordedValue,
			Actor:         tx.Actor,
		}
	}
	return infos
}

// ChainInfo lists every block of the ledger.
func (s *Service) ChainInfo() *watercompany.ChainReply {
	blocks := s.chain.Blocks()
	reply := &watercompany.ChainReply{
		Length:     len(blocks),
		Difficulty: s.chain.Difficulty(),
		Blocks:     make([]watercompany.BlockInfo, len(blocks)),
	}
	for i, b := range blocks {
		reply.Blocks[i] = watercompany.BlockInfo{
			Index:        b.Index,
			Timestamp:    b.Time().UTC(),
			Nonce:        b.Nonce,
			PreviousHash: b.PrevBlock.String(),
			Hash:         b.Hash.String(),
			Sealer:       b.Sealer,
			Transactions: transactionInfos(b.Transactions),
		}
	}
	return reply
}

// ValidateChain checks the whole ledger.
func (s *Service) ValidateChain() *watercompany.ValidateReply {
	reply := &watercompany.ValidateReply{Valid: true, Length: s.chain.Length()}
	if err := s.chain.Verify(); err != nil {
		log.Error("ledger integrity:", err)
		reply.Valid = false
		reply.Error = err.Error()
	}
	return reply
}

// Pending lists the transactions waiting for a block.
func (s *Service) Pending() *watercompany.PendingReply {
	return &watercompany.PendingReply{
		Transactions: transactionInfos(s.chain.SnapshotPending()),
	}
}
