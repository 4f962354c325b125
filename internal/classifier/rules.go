package classifier

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/taxledger/internal/model"
)

// Rule maps a keyword set to a target account for one invoice type.
type Rule struct {
	Type           model.InvoiceType `yaml:"type"`
	Keywords       []string          `yaml:"keywords"`
	AccountCode    string            `yaml:"account_code"`
	BaseConfidence float64           `yaml:"base_confidence"`
}

// RuleSet is an ordered rule table plus the fallback account per type.
// Declaration order breaks ties between equally matching rules.
type RuleSet struct {
	Rules    []Rule                       `yaml:"rules"`
	Defaults map[model.InvoiceType]string `yaml:"defaults"`
}

// LoadRules reads a rule set from a YAML file.
func LoadRules(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("reading classifier rules: %w", err)
	}
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return RuleSet{}, fmt.Errorf("parsing classifier rules: %w", err)
	}
	if err := rs.Validate(); err != nil {
		return RuleSet{}, err
	}
	return rs, nil
}

// SaveRules writes a rule set as YAML.
func SaveRules(path string, rs RuleSet) error {
	data, err := yaml.Marshal(rs)
	if err != nil {
		return fmt.Errorf("marshaling classifier rules: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing classifier rules: %w", err)
	}
	return nil
}

// Validate checks every rule is usable.
func (rs RuleSet) Validate() error {
	for i, r := range rs.Rules {
		if !r.Type.Valid() {
			return fmt.Errorf("rule %d: unknown invoice type %q", i+1, r.Type)
		}
		if len(r.Keywords) == 0 {
			return fmt.Errorf("rule %d: no keywords", i+1)
		}
		if r.AccountCode == "" {
			return fmt.Errorf("rule %d: no account code", i+1)
		}
		if r.BaseConfidence <= 0 || r.BaseConfidence > 1 {
			return fmt.Errorf("rule %d: base confidence %v outside (0, 1]", i+1, r.BaseConfidence)
		}
	}
	for typ := range rs.Defaults {
		if !typ.Valid() {
			return fmt.Errorf("default for unknown invoice type %q", typ)
		}
	}
	return nil
}

// DefaultRuleSet returns the built-in rules for the default chart of accounts.
func DefaultRuleSet() RuleSet {
	in, out := model.InvoiceInput, model.InvoiceOutput
	return RuleSet{
		Rules: []Rule{
			{Type: in, Keywords: []string{"租金", "房租", "rent", "lease"}, AccountCode: "6101", BaseConfidence: 0.85},
			{Type: in, Keywords: []string{"文具", "辦公用品", "影印", "stationery", "office supplies", "paper"}, AccountCode: "6102", BaseConfidence: 0.8},
			{Type: in, Keywords: []string{"計程車", "高鐵", "台鐵", "機票", "住宿", "taxi", "uber", "airline", "hotel", "travel"}, AccountCode: "6103", BaseConfidence: 0.8},
			{Type: in, Keywords: []string{"電費", "水費", "瓦斯", "電信", "台電", "中華電信", "electricity", "water", "telecom"}, AccountCode: "6104", BaseConfidence: 0.85},
			{Type: in, Keywords: []string{"會計師", "律師", "顧問", "記帳", "accounting", "legal", "consulting"}, AccountCode: "6105", BaseConfidence: 0.8},
			{Type: in, Keywords: []string{"廣告", "行銷", "google ads", "facebook", "meta platforms", "advertising"}, AccountCode: "6106", BaseConfidence: 0.8},
			{Type: in, Keywords: []string{"運費", "快遞", "物流", "宅配", "黑貓", "shipping", "courier", "freight"}, AccountCode: "6107", BaseConfidence: 0.8},
			{Type: in, Keywords: []string{"軟體", "訂閱", "雲端", "software", "subscription", "saas", "github", "aws"}, AccountCode: "6108", BaseConfidence: 0.75},
			{Type: in, Keywords: []string{"進貨", "原料", "商品", "inventory", "merchandise", "raw material"}, AccountCode: "5101", BaseConfidence: 0.7},
			{Type: out, Keywords: []string{"服務", "顧問", "設計", "維護", "service", "consulting", "maintenance", "design"}, AccountCode: "4102", BaseConfidence: 0.8},
			{Type: out, Keywords: []string{"商品", "貨品", "銷貨", "product", "goods", "merchandise"}, AccountCode: "4101", BaseConfidence: 0.8},
		},
		Defaults: map[model.InvoiceType]string{
			in:  "6199",
			out: "4101",
		},
	}
}
