// internal/model/campaign.go
package model

import "time"

// Status is a campaign lifecycle stage.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusValidated     Status = "validated"
	StatusSetupComplete Status = "setup_complete"
	StatusLaunched      Status = "launched"
)

// stageOrder is the only legal forward path through the lifecycle.
var stageOrder = []Status{StatusDraft, StatusValidated, StatusSetupComplete, StatusLaunched}

// Rank returns the position of s in the lifecycle, or -1 for unknown values.
func (s Status) Rank() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

func (s Status) Valid() bool {
	return s.Rank() >= 0
}

// Next returns the stage that directly follows s. The terminal stage and
// unknown values have no successor.
func (s Status) Next() (Status, bool) {
	r := s.Rank()
	if r < 0 || r == len(stageOrder)-1 {
		return "", false
	}
	return stageOrder[r+1], true
}

// Stages returns the lifecycle in order.
func Stages() []Status {
	out := make([]Status, len(stageOrder))
	copy(out, stageOrder)
	return out
}

type Campaign struct {
	ID          int        `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Description *string    `db:"description" json:"description"`
	Status      Status     `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	LaunchedAt  *time.Time `db:"launched_at" json:"launched_at"`
	IsActive    bool       `db:"is_active" json:"is_active"`
}

// DescriptionText resolves the optional description to "" when unset.
func (c *Campaign) DescriptionText() string {
	if c.Description == nil {
		return ""
	}
	return *c.Description
}

// SetupDetails is recorded when a campaign moves to setup_complete.
type SetupDetails struct {
	CampaignID                int       `db:"campaign_id" json:"-"`
	ResourcesAllocated        bool      `db:"resources_allocated" json:"resources_allocated"`
	ConfigurationApplied      bool      `db:"configuration_applied" json:"configuration_applied"`
	ExternalServicesConnected bool      `db:"external_services_connected" json:"external_services_connected"`
	SetupTimestamp            time.Time `db:"setup_timestamp" json:"setup_timestamp"`
}
