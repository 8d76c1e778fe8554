package cct

import (
	"fmt"
	"os"

	"cashflowd/cashflow-ingest/internal/models"

	"gopkg.in/yaml.v3"
)

// KeywordRule emits a candidate when any of its keywords appears in
// the case-folded category+narration evidence blob.
type KeywordRule struct {
	ID         string     `yaml:"id"`
	Label      models.CCT `yaml:"label"`
	Confidence float64    `yaml:"confidence"`
	Keywords   []string   `yaml:"keywords"`
}

// DefaultRules returns the built-in keyword rule set. Hard rules carry
// the highest weight, category rules medium, narration rules low.
func DefaultRules() []KeywordRule {
	return []KeywordRule{
		{ID: "HARD_SETTLEMENT_FEE", Label: models.CCTPassThrough, Confidence: 0.90,
			Keywords: []string{"settlement", "gateway", "pg", "fee", "commission"}},
		{ID: "HARD_REFUND_REVERSAL", Label: models.CCTPassThrough, Confidence: 0.88,
			Keywords: []string{"refund", "reversal", "chargeback"}},
		{ID: "HARD_OWNER_TRANSFER", Label: models.CCTArtificial, Confidence: 0.90,
			Keywords: []string{"owner", "self", "capital", "withdrawal", "infusion", "director"}},

		{ID: "CAT_OBLIGATION", Label: models.CCTConstrained, Confidence: 0.75,
			Keywords: []string{"rent", "utility", "electricity", "water", "emi", "gst", "tax"}},
		{ID: "CAT_INVENTORY", Label: models.CCTConstrained, Confidence: 0.75,
			Keywords: []string{"inventory", "stock", "wholesale", "supplier", "procure"}},
		{ID: "CAT_SALE", Label: models.CCTFree, Confidence: 0.75,
			Keywords: []string{"sale", "sales", "invoice", "pos", "order", "revenue"}},
		{ID: "CAT_REIMBURSEMENT", Label: models.CCTConditional, Confidence: 0.72,
			Keywords: []string{"reimbursement", "insurance", "claim", "subsidy", "grant"}},

		{ID: "NAR_CASHBACK_PROMO", Label: models.CCTConditional, Confidence: 0.70,
			Keywords: []string{"cashback", "promo"}},
		{ID: "NAR_SETTLEMENT", Label: models.CCTPassThrough, Confidence: 0.70,
			Keywords: []string{"settle", "netting"}},
	}
}

// LoadRules reads a keyword rule set from a YAML file. The file is a
// list of rules mirroring the KeywordRule fields.
func LoadRules(path string) ([]KeywordRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading rules file %s: %w", path, err)
	}

	var rules []KeywordRule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("error parsing rules file %s: %w", path, err)
	}

	for _, rule := range rules {
		if err := validateRule(rule); err != nil {
			return nil, fmt.Errorf("invalid rule in %s: %w", path, err)
		}
	}
	return rules, nil
}

func validateRule(rule KeywordRule) error {
	if rule.ID == "" {
		return fmt.Errorf("rule missing id")
	}
	if rule.Confidence <= 0 || rule.Confidence > 1 {
		return fmt.Errorf("rule %s: confidence must be in (0, 1], got %f", rule.ID, rule.Confidence)
	}
	if len(rule.Keywords) == 0 {
		return fmt.Errorf("rule %s: no keywords", rule.ID)
	}
	valid := false
	for _, cct := range models.AllCCTs {
		if rule.Label == cct {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("rule %s: unknown label %q", rule.ID, rule.Label)
	}
	return nil
}
