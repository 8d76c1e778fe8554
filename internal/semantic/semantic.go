// Package semantic derives a coarse role/purpose view of a transaction
// from its optional free-text evidence. The output is advisory only:
// it feeds the CCT rule engine and is never persisted.
package semantic

import (
	"strings"

	"cashflowd/cashflow-ingest/internal/models"
)

// roleRule pairs an ordered keyword set with the classes it implies.
// The first matching rule wins.
type roleRule struct {
	keywords []string
	role     string
	purpose  string
}

var roleRules = []roleRule{
	{[]string{"owner", "self", "capital", "withdrawal", "infusion"}, models.RoleOwner, models.PurposeOwnerTransfer},
	{[]string{"supplier", "inventory", "stock", "procure"}, models.RoleSupplier, models.PurposeInventory},
	{[]string{"rent", "utility", "electricity", "water", "emi", "gst", "tax"}, models.RoleObligation, models.PurposeOpexOrStatutory},
	{[]string{"refund", "chargeback", "reversal"}, models.RolePlatform, models.PurposeRefundReversal},
	{[]string{"settlement", "gateway", "pg", "fee", "commission"}, models.RolePlatform, models.PurposeSettlementFee},
	{[]string{"sale", "sales", "invoice", "pos", "order", "revenue"}, models.RoleCustomer, models.PurposeSale},
	{[]string{"reimbursement", "insurance", "claim", "subsidy", "grant"}, models.RoleThirdParty, models.PurposeReimbursement},
}

// EvidenceText folds the category and narration evidence into one
// lowercase blob for keyword matching.
func EvidenceText(category, narration string) string {
	cat := strings.ToLower(strings.TrimSpace(category))
	nar := strings.ToLower(strings.TrimSpace(narration))
	return strings.TrimSpace(cat + " " + nar)
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// Classify maps a canonical transaction to its ephemeral semantic
// view. No matching keyword set yields (UNKNOWN, UNKNOWN).
func Classify(txn models.CanonicalTxn) models.TxnSemantic {
	blob := EvidenceText(txn.RawCategory, txn.RawNarration)

	role := models.RoleUnknown
	purpose := models.PurposeUnknown
	for _, rule := range roleRules {
		if containsAny(blob, rule.keywords) {
			role = rule.role
			purpose = rule.purpose
			break
		}
	}

	return models.TxnSemantic{
		SubjectRef:           txn.SubjectRef,
		EventTS:              txn.EventTS,
		Direction:            txn.Direction,
		Amount:               txn.Amount,
		Channel:              txn.Channel,
		RawCategory:          txn.RawCategory,
		RawNarration:         txn.RawNarration,
		RawCounterpartyToken: txn.RawCounterpartyToken,
		RoleClass:            role,
		PurposeClass:         purpose,
	}
}
