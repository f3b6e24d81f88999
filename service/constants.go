package service

// Water pack statuses, in workflow order.
const (
	StatusCreated              = "CREATED"
	StatusInspector            = "INSPECTOR"
	StatusApproved             = "APPROVED"
	StatusRejectedContaminated = "REJECTED_CONTAMINATED"
	StatusRejectedExpired      = "REJECTED_EXPIRED"
	StatusDistributed          = "DISTRIBUTED"
	StatusSold                 = "SOLD"
)

// Roles a user can hold.
const (
	RoleAdmin     = "ADMIN"
	RoleInspector = "INSPECTOR"
)

// Rejection reasons.
const (
	ReasonContaminated = "CONTAMINATED"
	ReasonExpired      = "EXPIRED"
)

// SerialPrefix starts every water pack serial code.
const SerialPrefix = "WAT-"

const (
	DEFAULT_HTTP_ADDR     = ":3000"
	DEFAULT_DB_PATH       = "watercompany.db"
	DEFAULT_MINE_TIMEOUT  = "30s"
	DEFAULT_SESSION_TTL   = "24h"
	DEFAULT_NETWORK       = "in-process"
	MIN_PASSWORD_LENGTH   = 6
	MAX_REQUEST_BODY_SIZE = 1 << 20
)

var (
	packBucket = []byte("packs")
	userBucket = []byte("users")
)

// transitions lists the statuses reachable from each status.
var transitions = map[string][]string{
	StatusCreated:     {StatusInspector},
	StatusInspector:   {StatusApproved, StatusRejectedContaminated, StatusRejectedExpired},
	StatusApproved:    {StatusDistributed},
	StatusDistributed: {StatusSold},
}

// rejections maps a rejection reason to its status.
var rejections = map[string]string{
	ReasonContaminated: StatusRejectedContaminated,
	ReasonExpired:      StatusRejectedExpired,
}
