// Package models defines the canonical transaction event, the
// classification result types and the derived daily aggregates that are
// the only artifacts allowed to outlive an ingestion request.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the cashflow direction of a transaction.
type Direction string

// Valid directions. Stored lowercase, matching upstream feeds.
const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// ParseDirection normalizes a raw direction value (trim, lowercase) and
// reports whether it is a member of the closed set.
func ParseDirection(raw string) (Direction, bool) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(raw))); d {
	case DirectionCredit, DirectionDebit:
		return d, true
	default:
		return "", false
	}
}

// Channel is the payment rail a transaction moved over.
type Channel string

// The closed channel enumeration.
const (
	ChannelUPI           Channel = "UPI"
	ChannelCard          Channel = "CARD"
	ChannelBank          Channel = "BANK"
	ChannelNetBanking    Channel = "NET_BANKING"
	ChannelWallet        Channel = "WALLET"
	ChannelCODSettlement Channel = "COD_SETTLEMENT"
)

var validChannels = map[Channel]struct{}{
	ChannelUPI:           {},
	ChannelCard:          {},
	ChannelBank:          {},
	ChannelNetBanking:    {},
	ChannelWallet:        {},
	ChannelCODSettlement: {},
}

// ParseChannel normalizes a raw channel value (trim, uppercase) and
// reports whether it is a recognized rail.
func ParseChannel(raw string) (Channel, bool) {
	c := Channel(strings.ToUpper(strings.TrimSpace(raw)))
	_, ok := validChannels[c]
	return c, ok
}

// CCT is the Cash-Control-Type label: a transaction's behavioral role
// in the merchant's cashflow.
type CCT string

// The six CCT labels.
const (
	CCTFree        CCT = "FREE"
	CCTConstrained CCT = "CONSTRAINED"
	CCTPassThrough CCT = "PASS_THROUGH"
	CCTArtificial  CCT = "ARTIFICIAL"
	CCTConditional CCT = "CONDITIONAL"
	CCTUnknown     CCT = "UNKNOWN"
)

// AllCCTs lists every label in a stable order, used to zero-fill
// aggregate buckets.
var AllCCTs = []CCT{CCTFree, CCTConstrained, CCTPassThrough, CCTArtificial, CCTConditional, CCTUnknown}

// BucketKey forms the control-aggregate bucket key for a label and
// direction, e.g. "FREE_IN" or "PASS_THROUGH_OUT".
func BucketKey(cct CCT, direction Direction) string {
	suffix := "OUT"
	if direction == DirectionCredit {
		suffix = "IN"
	}
	return fmt.Sprintf("%s_%s", cct, suffix)
}

// ControlBucketKeys returns the 12 possible {CCT}_{IN,OUT} keys.
func ControlBucketKeys() []string {
	keys := make([]string, 0, len(AllCCTs)*2)
	for _, cct := range AllCCTs {
		keys = append(keys, BucketKey(cct, DirectionCredit), BucketKey(cct, DirectionDebit))
	}
	return keys
}

// Per-row rejection reason codes tallied by the normalizer.
const (
	RejectMissingRequiredField = "MISSING_REQUIRED_FIELD"
	RejectInvalidTS            = "INVALID_TS"
	RejectInvalidAmount        = "INVALID_AMOUNT"
	RejectInvalidDirection     = "INVALID_DIRECTION"
	RejectInvalidChannel       = "INVALID_CHANNEL"
	RejectUnknownStatus        = "UNKNOWN_STATUS"
)

// KnownFailureStatuses is the vocabulary of upstream record_status
// failure codes that are tallied under their own name; anything else
// non-SUCCESS falls into UNKNOWN_STATUS.
var KnownFailureStatuses = map[string]struct{}{
	"FAILED_INSUFFICIENT_FUNDS": {},
	"FAILED_TIMEOUT":            {},
	"FAILED_NETWORK":            {},
	"INVALID_TOKEN":             {},
}

// CanonicalTxn is one validated transaction event. Constructed only by
// the normalizer, never mutated, never persisted: it is discarded once
// the daily aggregates are computed. The Raw* fields are ephemeral
// classification evidence.
type CanonicalTxn struct {
	SubjectRef string
	MerchantID string
	EventTS    time.Time
	Amount     decimal.Decimal
	Direction  Direction
	Channel    Channel

	RawCategory          string
	RawNarration         string
	RawCounterpartyToken string
	PartialRecord        bool
}

// Day returns the calendar day of the event as YYYY-MM-DD.
func (t CanonicalTxn) Day() string {
	return t.EventTS.Format("2006-01-02")
}

// Role and purpose classes emitted by the semantic classifier.
const (
	RoleOwner      = "OWNER"
	RoleSupplier   = "SUPPLIER"
	RoleObligation = "OBLIGATION"
	RolePlatform   = "PLATFORM"
	RoleCustomer   = "CUSTOMER"
	RoleThirdParty = "THIRD_PARTY"
	RoleUnknown    = "UNKNOWN"

	PurposeOwnerTransfer   = "OWNER_TRANSFER"
	PurposeInventory       = "INVENTORY"
	PurposeOpexOrStatutory = "OPEX_OR_STATUTORY"
	PurposeRefundReversal  = "REFUND_OR_REVERSAL"
	PurposeSettlementFee   = "SETTLEMENT_OR_FEE"
	PurposeSale            = "SALE"
	PurposeReimbursement   = "REIMBURSEMENT"
	PurposeUnknown         = "UNKNOWN"
)

// TxnSemantic is the ephemeral derived view of a CanonicalTxn consumed
// by the CCT rule engine. Never persisted.
type TxnSemantic struct {
	SubjectRef           string
	EventTS              time.Time
	Direction            Direction
	Amount               decimal.Decimal
	Channel              Channel
	RawCategory          string
	RawNarration         string
	RawCounterpartyToken string
	RoleClass            string
	PurposeClass         string
}

// CCTResult is the rule engine's verdict for one transaction.
type CCTResult struct {
	CCT        CCT
	Confidence float64
	RulesFired []string
}

// DailyCashflow holds one day's credit and debit totals, rounded to
// two decimal places.
type DailyCashflow struct {
	Inflow  decimal.Decimal `json:"inflow"`
	Outflow decimal.Decimal `json:"outflow"`
}

// ControlDerived carries the per-day scalars derived from control
// buckets. Ratios are rounded to six decimal places.
type ControlDerived struct {
	FreeCashNet          decimal.Decimal `json:"free_cash_net"`
	OwnerDependencyRatio float64         `json:"owner_dependency_ratio"`
	PassThroughRatio     float64         `json:"pass_through_ratio"`
	UnknownFlowRatio     float64         `json:"unknown_flow_ratio"`
	UniquePayersCount    int             `json:"unique_payers_count"`
	AcceptedPartialRows  int             `json:"accepted_partial_rows"`
	UnknownCCTCount      int             `json:"unknown_cct_count"`
}

// DailyControl is one day's control aggregate: counts and sums for all
// 12 {CCT}_{IN,OUT} buckets plus derived scalars.
type DailyControl struct {
	Day     string                     `json:"day"`
	Counts  map[string]int             `json:"counts"`
	Sums    map[string]decimal.Decimal `json:"sums"`
	Derived ControlDerived             `json:"derived"`
}

// BatchRecord is the provenance record of one accepted ingestion,
// uniquely keyed by IdempotencyKey. It is the only per-batch state
// that persists; no raw transaction detail ever does.
type BatchRecord struct {
	SubjectRef     string
	Source         string
	FilenameHash   string
	FileExt        string
	ContentHash    string
	IdempotencyKey string
	RowsAccepted   int
	RowsRejected   int
	RangeStart     string
	RangeEnd       string
	CCTUnknownRate float64
}
