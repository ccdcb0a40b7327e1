// Package rules loads and validates the per-jurisdiction clearing rules.
// The rules document is YAML keyed by company code and is treated as
// immutable for the lifetime of a run. Validation happens at load time
// so that rule gaps surface before any posting is attempted, not at the
// point of use.
package rules

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Entity grouping kinds. A worklist entity selects items by worklist
// name; a company-code entity selects the whole company code.
const (
	KindWorklist    = "worklist"
	KindCompanyCode = "company_code"
)

// Rules maps company codes to their jurisdiction rules.
type Rules map[string]*Jurisdiction

// Jurisdiction holds the clearing rules shared by all entities of one
// company code.
type Jurisdiction struct {
	Country       string  `yaml:"country"`
	Active        bool    `yaml:"active"`
	CaseIDPattern string  `yaml:"case_id_pattern"`
	BaseThreshold float64 `yaml:"base_threshold"`

	// TaxThresholds overrides the base threshold for specific tax codes.
	TaxThresholds map[string]float64 `yaml:"tax_thresholds"`

	// UniversalTaxCode, when set, is forced onto every clearing group of
	// the jurisdiction regardless of the codes found on the items.
	UniversalTaxCode string `yaml:"universal_tax_code"`

	// CurrencyTaxes and CategoryTaxes assign a tax code to groups that
	// carry none, keyed by document currency and case category.
	CurrencyTaxes map[string]string `yaml:"currency_taxes"`
	CategoryTaxes map[string]string `yaml:"category_taxes"`

	// UnusedTaxCode is the jurisdiction default for groups no other rule
	// resolves. Empty means there is no default; such groups are skipped.
	UnusedTaxCode string `yaml:"unused_tax_code"`

	// SkippedTaxes excludes groups with these codes from clearing for the
	// whole jurisdiction.
	SkippedTaxes []string `yaml:"skipped_taxes"`

	// DifferenceName is the posting-text template. The $customer$ marker
	// is replaced with the customer name.
	DifferenceName string `yaml:"difference_name"`

	// AssignmentOverride replaces the group identifier as the posting
	// assignment value. Used by one jurisdiction as an audit flag.
	AssignmentOverride string `yaml:"assignment_override"`

	Entities map[string]*Entity `yaml:"entities"`
}

// Entity holds the rules of one processed entity (a worklist or a whole
// company code).
type Entity struct {
	Active          bool             `yaml:"active"`
	Kind            string           `yaml:"kind"`
	ValidTaxes      []string         `yaml:"valid_taxes"`
	SkippedTaxes    []string         `yaml:"skipped_taxes"`
	HeadOfficeTaxes map[int64]string `yaml:"head_office_taxes"`
	GLAccounts      GLAccounts       `yaml:"gl_accounts"`
	Accountants     []Accountant     `yaml:"accountants"`
}

// GLAccounts selects the posting account for a group's rest amount.
// WriteOffCommon is mandatory; the others are optional refinements.
type GLAccounts struct {
	Penalties       *GLAccount `yaml:"penalties"`
	WriteOffDebits  *GLAccount `yaml:"write_off_debits"`
	WriteOffCredits *GLAccount `yaml:"write_off_credits"`
	WriteOffCommon  *GLAccount `yaml:"write_off_common"`
}

// GLAccount is a posting account with its trade/retail cost centers.
// When the two cost centers differ, the clearing input builder needs a
// customer directory to categorize the account.
type GLAccount struct {
	Number     string      `yaml:"number"`
	CostCenter CostCenters `yaml:"cost_center"`
}

// CostCenters holds the cost center per customer channel.
type CostCenters struct {
	Trade  string `yaml:"trade"`
	Retail string `yaml:"retail"`
}

// Accountant receives the run report for an entity.
type Accountant struct {
	Name string `yaml:"name"`
	Mail string `yaml:"mail"`
}

// ActiveEntity is one entity selected for processing, together with its
// company code.
type ActiveEntity struct {
	Name        string
	CompanyCode string
}

// Load reads and validates the clearing rules document.
func Load(path string) (Rules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read clearing rules: %w", err)
	}

	var r Rules
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("cannot parse clearing rules: %w", err)
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the rules of every active jurisdiction and entity.
// Inactive ones are not validated; they are never read during a run.
func (r Rules) Validate() error {
	for cocd, jur := range r {
		if !jur.Active {
			continue
		}
		if jur.Country == "" {
			return fmt.Errorf("rules %s: country is required", cocd)
		}
		if jur.CaseIDPattern == "" {
			return fmt.Errorf("rules %s: case_id_pattern is required", cocd)
		}
		if _, err := regexp.Compile(jur.CaseIDPattern); err != nil {
			return fmt.Errorf("rules %s: case_id_pattern: %w", cocd, err)
		}
		if jur.BaseThreshold < 0 {
			return fmt.Errorf("rules %s: base_threshold must not be negative", cocd)
		}
		for tax, thresh := range jur.TaxThresholds {
			if thresh < 0 {
				return fmt.Errorf("rules %s: tax threshold %s must not be negative", cocd, tax)
			}
		}

		for name, ent := range jur.Entities {
			if !ent.Active {
				continue
			}
			if err := ent.validate(); err != nil {
				return fmt.Errorf("rules %s/%s: %w", cocd, name, err)
			}
		}
	}
	return nil
}

func (e *Entity) validate() error {
	if e.Kind != KindWorklist && e.Kind != KindCompanyCode {
		return fmt.Errorf("kind must be %q or %q, got %q", KindWorklist, KindCompanyCode, e.Kind)
	}
	if len(e.ValidTaxes) == 0 {
		return fmt.Errorf("valid_taxes is required")
	}
	if e.GLAccounts.WriteOffCommon == nil {
		return fmt.Errorf("gl_accounts.write_off_common is required")
	}
	for _, acc := range []*GLAccount{
		e.GLAccounts.Penalties,
		e.GLAccounts.WriteOffDebits,
		e.GLAccounts.WriteOffCredits,
		e.GLAccounts.WriteOffCommon,
	} {
		if acc == nil {
			continue
		}
		if acc.Number == "" {
			return fmt.Errorf("gl account number is required")
		}
		if acc.CostCenter.Trade == "" || acc.CostCenter.Retail == "" {
			return fmt.Errorf("gl account %s: both cost centers are required", acc.Number)
		}
	}
	return nil
}

// BaseThresholdAmount returns the base threshold as a decimal. A
// configured zero is nudged to a minimal epsilon so that groups summing
// to exactly zero still clear.
func (j *Jurisdiction) BaseThresholdAmount() decimal.Decimal {
	if j.BaseThreshold == 0 {
		return decimal.New(1, -2) // 0.01
	}
	return decimal.NewFromFloat(j.BaseThreshold)
}

// TaxThresholdAmounts returns the per-tax-code thresholds as decimals.
func (j *Jurisdiction) TaxThresholdAmounts() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(j.TaxThresholds))
	for tax, thresh := range j.TaxThresholds {
		out[tax] = decimal.NewFromFloat(thresh)
	}
	return out
}

// ActiveEntities selects the entities to process, ordered by company
// code then entity name. When userEntity is non-empty only that entity
// is selected, even if flagged inactive; a user-requested run overrides
// the activity flag of the entity but not of its jurisdiction.
func (r Rules) ActiveEntities(userEntity string) []ActiveEntity {
	var out []ActiveEntity

	for cocd, jur := range r {
		if !jur.Active {
			continue
		}
		for name, ent := range jur.Entities {
			if userEntity != "" {
				if name == userEntity {
					out = append(out, ActiveEntity{Name: name, CompanyCode: cocd})
				}
				continue
			}
			if !ent.Active {
				continue
			}
			out = append(out, ActiveEntity{Name: name, CompanyCode: cocd})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CompanyCode != out[j].CompanyCode {
			return out[i].CompanyCode < out[j].CompanyCode
		}
		return out[i].Name < out[j].Name
	})

	return out
}
