package models

// GovernanceAttributes carries the business context attached to every
// governed operation. All fields are optional; empty values are omitted
// from telemetry.
type GovernanceAttributes struct {
	Team        string `json:"team,omitempty"`
	Project     string `json:"project,omitempty"`
	CustomerID  string `json:"customer_id,omitempty"`
	Environment string `json:"environment,omitempty"`
	CostCenter  string `json:"cost_center,omitempty"`
	Feature     string `json:"feature,omitempty"`
}

// Merge returns a copy of a with any empty fields filled from other.
// Values already set on a win.
func (a GovernanceAttributes) Merge(other GovernanceAttributes) GovernanceAttributes {
	if a.Team == "" {
		a.Team = other.Team
	}
	if a.Project == "" {
		a.Project = other.Project
	}
	if a.CustomerID == "" {
		a.CustomerID = other.CustomerID
	}
	if a.Environment == "" {
		a.Environment = other.Environment
	}
	if a.CostCenter == "" {
		a.CostCenter = other.CostCenter
	}
	if a.Feature == "" {
		a.Feature = other.Feature
	}
	return a
}

// Map returns the non-empty attributes as a flat string map keyed by the
// genops.* convention names.
func (a GovernanceAttributes) Map() map[string]string {
	m := make(map[string]string, 6)
	put := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	put("genops.team", a.Team)
	put("genops.project", a.Project)
	put("genops.customer_id", a.CustomerID)
	put("genops.environment", a.Environment)
	put("genops.cost_center", a.CostCenter)
	put("genops.feature", a.Feature)
	return m
}

// IsZero reports whether no attribute is set.
func (a GovernanceAttributes) IsZero() bool {
	return a == GovernanceAttributes{}
}
