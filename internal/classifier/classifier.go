// Package classifier suggests an account for an invoice from its text.
//
// The classifier is advisory: it never writes, it only proposes an account
// for the invoice lifecycle to use when the invoice carries none.
package classifier

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/taxledger/internal/model"
)

var (
	keywordBonus     = decimal.RequireFromString("0.05")
	maxConfidence    = decimal.RequireFromString("0.98")
	defaultConfidence = decimal.RequireFromString("0.5")
)

// Suggestion is a ranked account proposal.
type Suggestion struct {
	AccountID   string
	AccountCode string
	Confidence  decimal.Decimal // in [0, 1]
	Reasoning   string
}

// Classifier scores invoice text against an ordered rule table.
type Classifier struct {
	rules RuleSet
}

// New creates a Classifier over rs.
func New(rs RuleSet) *Classifier {
	return &Classifier{rules: rs}
}

// Rules returns the classifier's rule set.
func (c *Classifier) Rules() RuleSet {
	return c.rules
}

// Classify proposes an account among active for an invoice of type typ.
// The rule with the most keyword hits wins, earlier rules winning ties; with
// no hit the type's default account is proposed at confidence 0.5. It
// returns false when nothing can be proposed, which callers must treat as
// "ask for a manual choice".
func (c *Classifier) Classify(active []model.Account, typ model.InvoiceType, description, counterparty string) (Suggestion, bool) {
	byCode := make(map[string]model.Account, len(active))
	for _, a := range active {
		if a.IsActive {
			byCode[a.Code] = a
		}
	}
	if len(byCode) == 0 {
		return Suggestion{}, false
	}

	text := strings.ToLower(description + " " + counterparty)

	var best *Rule
	var bestHits []string
	for i := range c.rules.Rules {
		r := &c.rules.Rules[i]
		if r.Type != typ {
			continue
		}
		if _, ok := byCode[r.AccountCode]; !ok {
			continue
		}
		hits := matchKeywords(text, r.Keywords)
		if len(hits) > len(bestHits) {
			best, bestHits = r, hits
		}
	}

	if best != nil {
		acct := byCode[best.AccountCode]
		conf := decimal.NewFromFloat(best.BaseConfidence).
			Add(keywordBonus.Mul(decimal.NewFromInt(int64(len(bestHits) - 1))))
		conf = decimal.Min(conf, maxConfidence)
		return Suggestion{
			AccountID:   acct.ID,
			AccountCode: acct.Code,
			Confidence:  conf,
			Reasoning:   fmt.Sprintf("matched %s (%s) on %s", acct.Code, acct.Name, quoteAll(bestHits)),
		}, true
	}

	code, ok := c.rules.Defaults[typ]
	if !ok {
		return Suggestion{}, false
	}
	acct, ok := byCode[code]
	if !ok {
		return Suggestion{}, false
	}
	return Suggestion{
		AccountID:   acct.ID,
		AccountCode: acct.Code,
		Confidence:  defaultConfidence,
		Reasoning:   fmt.Sprintf("no keyword matched; default %s account %s (%s)", strings.ToLower(string(typ)), acct.Code, acct.Name),
	}, true
}

func matchKeywords(text string, keywords []string) []string {
	var hits []string
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			hits = append(hits, kw)
		}
	}
	return hits
}

func quoteAll(words []string) string {
	q := make([]string, len(words))
	for i, w := range words {
		q[i] = fmt.Sprintf("%q", w)
	}
	return strings.Join(q, ", ")
}
