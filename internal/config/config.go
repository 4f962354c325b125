// Package config loads taxledger.yaml and applies .env and environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file at the project root.
const FileName = "taxledger.yaml"

// Environment variables that override file values.
const (
	EnvDBPath    = "TAXLEDGER_DB_PATH"
	EnvCompanyID = "TAXLEDGER_COMPANY_ID"
	EnvTaxID     = "TAXLEDGER_TAX_ID"
)

// Config represents the top-level taxledger.yaml configuration.
type Config struct {
	Company    CompanyConfig    `yaml:"company"`
	Database   DatabaseConfig   `yaml:"database"`
	Posting    PostingConfig    `yaml:"posting"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Import     DirConfig        `yaml:"import"`
	Export     DirConfig        `yaml:"export"`
}

// CompanyConfig identifies the filing company.
type CompanyConfig struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	TaxID        string `yaml:"tax_id"`
	BranchCode   string `yaml:"branch_code"`
	BusinessType string `yaml:"business_type,omitempty"`
}

// DatabaseConfig locates the ledger database.
type DatabaseConfig struct {
	Path string `yaml:"path"` // relative to the project root
}

// PostingConfig names the control accounts invoice postings use.
type PostingConfig struct {
	Receivable string `yaml:"receivable"`
	OutputTax  string `yaml:"output_tax"`
	Payable    string `yaml:"payable"`
	InputTax   string `yaml:"input_tax"`
}

// ClassifierConfig locates the account classifier's rule file.
type ClassifierConfig struct {
	RulesPath string `yaml:"rules_path"` // relative to the project root
}

// DirConfig names a project subdirectory.
type DirConfig struct {
	Dir string `yaml:"dir"`
}

// Load reads a taxledger.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.fillDefaults()
	return &cfg, nil
}

// LoadProject reads <root>/taxledger.yaml, then loads <root>/.env if present
// and applies environment overrides.
func LoadProject(root string) (*Config, error) {
	cfg, err := Load(filepath.Join(root, FileName))
	if err != nil {
		return nil, err
	}
	envPath := filepath.Join(root, ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides file values with any TAXLEDGER_* variables set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvCompanyID); v != "" {
		c.Company.ID = v
	}
	if v := os.Getenv(EnvTaxID); v != "" {
		c.Company.TaxID = v
	}
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default(companyName, taxID string) *Config {
	cfg := &Config{
		Company: CompanyConfig{
			ID:    taxID,
			Name:  companyName,
			TaxID: taxID,
		},
	}
	cfg.fillDefaults()
	return cfg
}

func (c *Config) fillDefaults() {
	if c.Company.BranchCode == "" {
		c.Company.BranchCode = "0"
	}
	if c.Database.Path == "" {
		c.Database.Path = "ledger.db"
	}
	if c.Posting.Receivable == "" {
		c.Posting.Receivable = "1101"
	}
	if c.Posting.OutputTax == "" {
		c.Posting.OutputTax = "2201"
	}
	if c.Posting.Payable == "" {
		c.Posting.Payable = "2101"
	}
	if c.Posting.InputTax == "" {
		c.Posting.InputTax = "1150"
	}
	if c.Classifier.RulesPath == "" {
		c.Classifier.RulesPath = "classifier.yaml"
	}
	if c.Import.Dir == "" {
		c.Import.Dir = "import"
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "export"
	}
}

// Resolve returns p relative to the project root unless it is absolute.
func Resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
