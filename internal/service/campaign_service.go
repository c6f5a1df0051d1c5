// internal/service/campaign_service.go
package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	appErrors "github.com/unclebandit/campaign-launch-api/internal/errors"
	"github.com/unclebandit/campaign-launch-api/internal/model"
	"github.com/unclebandit/campaign-launch-api/internal/repository"
)

const minNameLength = 3

// Validation messages, in the order they are checked.
const (
	MsgNameTooShort        = "Campaign name must be at least 3 characters"
	MsgDescriptionRequired = "Campaign description is required"
)

// CampaignService owns the campaign lifecycle. It is the only writer of
// Status, LaunchedAt and IsActive.
type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	Now          func() time.Time
}

func NewCampaignService(repo repository.CampaignRepositoryInterface) *CampaignService {
	return &CampaignService{
		CampaignRepo: repo,
		Now:          time.Now,
	}
}

// ValidationResult is a normal negative or positive outcome, never a fault.
type ValidationResult struct {
	CampaignID       int      `json:"campaign_id"`
	IsValid          bool     `json:"is_valid"`
	ValidationErrors []string `json:"validation_errors"`
}

type SetupResult struct {
	CampaignID    int                `json:"campaign_id"`
	SetupComplete bool               `json:"setup_complete"`
	SetupDetails  model.SetupDetails `json:"setup_details"`
}

// now is truncated to the millisecond precision timestamps are stored with,
// so a returned campaign matches what a later read sees.
func (s *CampaignService) now() time.Time {
	clock := s.Now
	if clock == nil {
		clock = time.Now
	}
	return clock().UTC().Truncate(time.Millisecond)
}

// CreateCampaign stores a new draft campaign. The caller rejects blank names.
func (s *CampaignService) CreateCampaign(ctx context.Context, name string, description *string) (*model.Campaign, error) {
	c := s.newDraft(name, description)
	err := s.CampaignRepo.InTx(ctx, func(tx repository.CampaignTx) error {
		return tx.Create(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreateCampaignWithID stores a draft campaign under a caller-chosen id. An id
// that is already taken fails with an integrity error from the database.
func (s *CampaignService) CreateCampaignWithID(ctx context.Context, id int, name string, description *string) (*model.Campaign, error) {
	c := s.newDraft(name, description)
	c.ID = id
	err := s.CampaignRepo.InTx(ctx, func(tx repository.CampaignTx) error {
		return tx.CreateWithID(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CampaignService) newDraft(name string, description *string) *model.Campaign {
	c := &model.Campaign{
		Name:      strings.TrimSpace(name),
		Status:    model.StatusDraft,
		CreatedAt: s.now(),
	}
	if description != nil {
		if d := strings.TrimSpace(*description); d != "" {
			c.Description = &d
		}
	}
	return c
}

// ValidateCampaign collects every violation. A draft campaign without
// violations moves to validated; later stages are re-checked but never
// moved backwards.
func (s *CampaignService) ValidateCampaign(ctx context.Context, id int) (*ValidationResult, error) {
	result := &ValidationResult{CampaignID: id, ValidationErrors: []string{}}

	err := s.CampaignRepo.InTx(ctx, func(tx repository.CampaignTx) error {
		c, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}

		result.ValidationErrors = checkCampaign(c)
		result.IsValid = len(result.ValidationErrors) == 0
		if !result.IsValid || c.Status != model.StatusDraft {
			return nil
		}

		c.Status = model.StatusValidated
		return tx.Update(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func checkCampaign(c *model.Campaign) []string {
	violations := []string{}
	if utf8.RuneCountInString(strings.TrimSpace(c.Name)) < minNameLength {
		violations = append(violations, MsgNameTooShort)
	}
	if strings.TrimSpace(c.DescriptionText()) == "" {
		violations = append(violations, MsgDescriptionRequired)
	}
	return violations
}

// SetupCampaign allocates resources for a validated campaign.
func (s *CampaignService) SetupCampaign(ctx context.Context, id int) (*SetupResult, error) {
	var result *SetupResult

	err := s.CampaignRepo.InTx(ctx, func(tx repository.CampaignTx) error {
		c, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := requireStatus(c, model.StatusValidated, model.StatusSetupComplete); err != nil {
			return err
		}

		details := model.SetupDetails{
			CampaignID:                c.ID,
			ResourcesAllocated:        true,
			ConfigurationApplied:      true,
			ExternalServicesConnected: true,
			SetupTimestamp:            s.now(),
		}
		if err := tx.RecordSetup(ctx, &details); err != nil {
			return err
		}

		c.Status = model.StatusSetupComplete
		if err := tx.Update(ctx, c); err != nil {
			return err
		}

		result = &SetupResult{CampaignID: c.ID, SetupComplete: true, SetupDetails: details}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// LaunchCampaign activates a campaign whose setup is complete. The launch
// ledger write happens first, so a ledger failure leaves the campaign in
// setup_complete.
func (s *CampaignService) LaunchCampaign(ctx context.Context, id int) (*model.Campaign, error) {
	var launched *model.Campaign

	err := s.CampaignRepo.InTx(ctx, func(tx repository.CampaignTx) error {
		c, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := requireStatus(c, model.StatusSetupComplete, model.StatusLaunched); err != nil {
			return err
		}

		at := s.now()
		if err := tx.RecordLaunch(ctx, c.ID, at); err != nil {
			return err
		}

		c.Status = model.StatusLaunched
		c.LaunchedAt = &at
		c.IsActive = true
		if err := tx.Update(ctx, c); err != nil {
			return err
		}
		launched = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return launched, nil
}

func requireStatus(c *model.Campaign, required, next model.Status) error {
	if c.Status != required {
		return appErrors.NewInvalidStateTransition(c.ID, string(c.Status), string(required), string(next))
	}
	return nil
}

// GetCampaign fetches a campaign by ID
func (s *CampaignService) GetCampaign(ctx context.Context, id int) (*model.Campaign, error) {
	return s.CampaignRepo.GetByID(ctx, id)
}

// ListCampaigns returns every campaign ordered by id.
func (s *CampaignService) ListCampaigns(ctx context.Context) ([]*model.Campaign, error) {
	return s.CampaignRepo.ListCampaigns(ctx)
}

// ProbeMissingTable surfaces the operational error raised by querying a
// table that does not exist.
func (s *CampaignService) ProbeMissingTable(ctx context.Context) error {
	return s.CampaignRepo.ProbeMissingTable(ctx)
}
