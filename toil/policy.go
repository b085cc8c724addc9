/*
policy.go - Organization TOIL policy

PURPOSE:
  The tunable constants of the accrual rules: contracted day length,
  rounding grid, optional balance cap, optional earn expiry. Policies are
  configured once per organization and handed to the Service; the engine
  itself only ever sees plain numbers.

JSON FORM:
  Policies can be stored as JSON in organization settings:

    {
      "contracted_minutes": 480,
      "grid_minutes": 15,
      "max_balance_minutes": 4800,
      "expiry_days": 365
    }

  Zero values for max_balance_minutes and expiry_days disable the cap and
  expiry respectively.
*/
package toil

import (
	"encoding/json"
	"fmt"

	"github.com/quill/toil-tracker/engine"
)

// Policy is the organization's TOIL ruleset.
type Policy struct {
	// ContractedMinutes is the standard work day deducted from weekday
	// intervals before any TOIL is earned.
	ContractedMinutes int `json:"contracted_minutes"`

	// GridMinutes is the rounding grid for logged start/end times.
	GridMinutes int `json:"grid_minutes"`

	// MaxBalanceMinutes caps the accrued balance. 0 = no cap.
	MaxBalanceMinutes int `json:"max_balance_minutes"`

	// ExpiryDays ages out approved earn submissions. 0 = never expire.
	ExpiryDays int `json:"expiry_days"`
}

// DefaultPolicy returns the standard 8-hour day, 15-minute grid, no cap,
// no expiry.
func DefaultPolicy() Policy {
	return Policy{
		ContractedMinutes: engine.DefaultContractedMinutes,
		GridMinutes:       engine.DefaultGridMinutes,
	}
}

// ParsePolicy parses a JSON policy, filling unset fields from defaults
// and validating ranges.
func ParsePolicy(data []byte) (Policy, error) {
	p := DefaultPolicy()
	if err := json.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("invalid policy json: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks the policy for nonsensical values.
func (p Policy) Validate() error {
	if p.ContractedMinutes < 0 || p.ContractedMinutes > 1440 {
		return fmt.Errorf("contracted_minutes %d out of range [0, 1440]", p.ContractedMinutes)
	}
	if p.GridMinutes <= 0 || p.GridMinutes > 60 {
		return fmt.Errorf("grid_minutes %d out of range (0, 60]", p.GridMinutes)
	}
	if p.MaxBalanceMinutes < 0 {
		return fmt.Errorf("max_balance_minutes must not be negative")
	}
	if p.ExpiryDays < 0 {
		return fmt.Errorf("expiry_days must not be negative")
	}
	return nil
}
