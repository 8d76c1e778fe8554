// Package cct implements the Cash-Control-Type rule engine. Per
// transaction it runs Candidate Generation, Selection, Ambiguity Check
// and Threshold Check, and emits exactly one label. The engine is pure
// and deterministic for a fixed rule set and configuration.
package cct

import (
	"math"
	"sort"
	"strings"

	"cashflowd/cashflow-ingest/internal/logging"
	"cashflowd/cashflow-ingest/internal/models"
	"cashflowd/cashflow-ingest/internal/semantic"
)

// Candidate is one (label, confidence, rule id) vote from an
// independent evidence source.
type Candidate struct {
	Label      models.CCT
	Confidence float64
	RuleID     string
}

// Config carries the engine's decision parameters.
type Config struct {
	// MinConfidence is the global minimum. 0 disables thresholding.
	MinConfidence float64
	// AmbiguityDelta is the confidence gap below which two competing
	// labels are treated as tied and resolved to UNKNOWN.
	AmbiguityDelta float64
	// ThresholdOverrides supplies per-label minimums; absent labels
	// fall back to MinConfidence.
	ThresholdOverrides map[string]float64
}

// DefaultConfig mirrors the documented defaults.
func DefaultConfig() Config {
	return Config{MinConfidence: 0.70, AmbiguityDelta: 0.05}
}

// Engine evaluates keyword rules, channel heuristics and the semantic
// purpose fallback against one transaction's evidence.
type Engine struct {
	rules  []KeywordRule
	config Config
	logger logging.Logger
}

// NewEngine builds an engine over a rule set. A nil rule slice means
// the built-in defaults.
func NewEngine(rules []KeywordRule, config Config, logger logging.Logger) *Engine {
	if rules == nil {
		rules = DefaultRules()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Engine{rules: rules, config: config, logger: logger}
}

// Candidates generates every candidate the evidence supports, in a
// deterministic order. If nothing fires, a default (UNKNOWN, 0.50)
// candidate is emitted.
func (e *Engine) Candidates(sem models.TxnSemantic) []Candidate {
	var candidates []Candidate

	blob := semantic.EvidenceText(sem.RawCategory, sem.RawNarration)
	for _, rule := range e.rules {
		if containsAny(blob, rule.Keywords) {
			candidates = append(candidates, Candidate{
				Label:      rule.Label,
				Confidence: rule.Confidence,
				RuleID:     rule.ID,
			})
		}
	}

	candidates = append(candidates, channelHeuristics(sem)...)

	if fallback, ok := purposeFallback(sem.PurposeClass); ok {
		candidates = append(candidates, fallback)
	}

	if len(candidates) == 0 {
		candidates = append(candidates, Candidate{
			Label:      models.CCTUnknown,
			Confidence: 0.50,
			RuleID:     "PURPOSE_UNKNOWN",
		})
	}
	return candidates
}

// Classify resolves the candidates for one transaction into a single
// CCT verdict.
func (e *Engine) Classify(sem models.TxnSemantic) models.CCTResult {
	candidates := e.Candidates(sem)

	// Stable sort keeps generation order among equal confidences, so
	// ties resolve the same way on every run.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	top := candidates[0]
	if len(candidates) > 1 {
		second := candidates[1]
		if top.Label != second.Label && math.Abs(top.Confidence-second.Confidence) <= e.config.AmbiguityDelta {
			e.logger.Debug("ambiguous classification, deferring to UNKNOWN",
				logging.Field{Key: "top_rule", Value: top.RuleID},
				logging.Field{Key: "second_rule", Value: second.RuleID},
			)
			return models.CCTResult{
				CCT:        models.CCTUnknown,
				Confidence: top.Confidence,
				RulesFired: []string{top.RuleID, second.RuleID},
			}
		}
	}

	threshold := e.thresholdFor(top.Label)
	if threshold > 0 && top.Confidence < threshold {
		return models.CCTResult{
			CCT:        models.CCTUnknown,
			Confidence: top.Confidence,
			RulesFired: []string{top.RuleID},
		}
	}

	return models.CCTResult{
		CCT:        top.Label,
		Confidence: top.Confidence,
		RulesFired: []string{top.RuleID},
	}
}

// thresholdFor looks up the per-label minimum, falling back to the
// global default when the override map omits the label.
func (e *Engine) thresholdFor(label models.CCT) float64 {
	if override, ok := e.config.ThresholdOverrides[string(label)]; ok {
		return override
	}
	return e.config.MinConfidence
}

func channelHeuristics(sem models.TxnSemantic) []Candidate {
	var candidates []Candidate
	if sem.Direction == models.DirectionDebit &&
		(sem.Channel == models.ChannelNetBanking || sem.Channel == models.ChannelBank) {
		candidates = append(candidates, Candidate{
			Label:      models.CCTConstrained,
			Confidence: 0.60,
			RuleID:     "HEUR_NETBANK_DEBIT",
		})
	}
	if sem.Direction == models.DirectionCredit &&
		(sem.Channel == models.ChannelUPI || sem.Channel == models.ChannelCard || sem.Channel == models.ChannelWallet) {
		candidates = append(candidates, Candidate{
			Label:      models.CCTFree,
			Confidence: 0.60,
			RuleID:     "HEUR_CONSUMER_CREDIT",
		})
	}
	return candidates
}

func purposeFallback(purpose string) (Candidate, bool) {
	switch purpose {
	case models.PurposeSale:
		return Candidate{models.CCTFree, 0.70, "PURPOSE_SALE"}, true
	case models.PurposeInventory, models.PurposeOpexOrStatutory:
		return Candidate{models.CCTConstrained, 0.70, "PURPOSE_OBLIGATION"}, true
	case models.PurposeSettlementFee, models.PurposeRefundReversal:
		return Candidate{models.CCTPassThrough, 0.70, "PURPOSE_PASS_THROUGH"}, true
	case models.PurposeOwnerTransfer:
		return Candidate{models.CCTArtificial, 0.70, "PURPOSE_OWNER_TRANSFER"}, true
	case models.PurposeReimbursement:
		return Candidate{models.CCTConditional, 0.68, "PURPOSE_REIMBURSEMENT"}, true
	default:
		return Candidate{}, false
	}
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(text, k) {
			return true
		}
	}
	return false
}
