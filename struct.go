package watercompany

/*
This holds the messages exchanged with the service over HTTP. Every body is
JSON.
*/

import (
	"time"
)

// RegisterRequest creates a user.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// UserReply answers a registration or an account approval.
type UserReply struct {
	Message  string `json:"message"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Approved bool   `json:"approved"`
}

// LoginRequest exchanges credentials for a token.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginReply carries the bearer token for later requests.
type LoginReply struct {
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RejectRequest names why a pack is rejected, CONTAMINATED or EXPIRED.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// Receipt locates the ledger block that recorded a transition.
type Receipt struct {
	BlockIndex uint64 `json:"blockIndex"`
	BlockHash  string `json:"blockHash"`
}

// PackReply answers every pack transition.
type PackReply struct {
	Message    string   `json:"message"`
	SerialCode string   `json:"serialCode"`
	Status     string   `json:"status"`
	Blockchain *Receipt `json:"blockchain"`
}

// HistoryEntry is one recorded status of a pack.
type HistoryEntry struct {
	Status     string    `json:"status"`
	Actor      string    `json:"actor"`
	BlockIndex uint64    `json:"blockIndex"`
	BlockHash  string    `json:"blockHash"`
	Timestamp  time.Time `json:"timestamp"`
}

// VerifyReply is the ledger view of a pack.
type VerifyReply struct {
	SerialCode      string         `json:"serialCode"`
	Status          string         `json:"status"`
	CreatedBy       string         `json:"createdBy"`
	CreatedAt       time.Time      `json:"createdAt"`
	LastModifiedAt  time.Time      `json:"lastModifiedAt"`
	RejectionReason string         `json:"rejectionReason,omitempty"`
	BlockIndex      uint64         `json:"blockIndex"`
	BlockHash       string         `json:"blockHash"`
	History         []HistoryEntry `json:"history"`
}

// StatsReply summarizes packs and ledger.
type StatsReply struct {
	TotalWaterPacks     int            `json:"totalWaterPacks"`
	ByStatus            map[string]int `json:"byStatus"`
	ChainLength         int            `json:"chainLength"`
	PendingTransactions int            `json:"pendingTransactions"`
	Difficulty          int            `json:"difficulty"`
	BlockchainNetwork   string         `json:"blockchainNetwork"`
}

// TransactionInfo is a ledger entry.
type TransactionInfo struct {
	Subject       string `json:"subject"`
	RecordedValue string `json:"recordedValue"`
	Actor         string `json:"actor"`
}

// BlockInfo is a ledger block.
type BlockInfo struct {
	Index        uint64            `json:"index"`
	Timestamp    time.Time         `json:"timestamp"`
	Nonce        uint64            `json:"nonce"`
	PreviousHash string            `json:"previousHash"`
	Hash         string            `json:"hash"`
	Sealer       string            `json:"sealer,omitempty"`
	Transactions []TransactionInfo `json:"transactions"`
}

// ChainReply lists the whole ledger.
type ChainReply struct {
	Length     int         `json:"length"`
	Difficulty int         `json:"difficulty"`
	Blocks     []BlockInfo `json:"blocks"`
}

// ValidateReply reports the ledger integrity check.
type ValidateReply struct {
	Valid  bool   `json:"valid"`
	Length int    `json:"length"`
	Error  string `json:"error,omitempty"`
}

// PendingReply lists transactions waiting for a block.
type PendingReply struct {
	Transactions []TransactionInfo `json:"transactions"`
}

// ErrorReply is the body of every failed request.
type ErrorReply struct {
	Error string `json:"error"`
}
