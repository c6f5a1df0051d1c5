// Package flow drives a campaign through validate, setup and launch in one
// call.
package flow

import (
	"context"

	"go.uber.org/zap"

	"github.com/unclebandit/campaign-launch-api/internal/model"
	"github.com/unclebandit/campaign-launch-api/internal/service"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Step is a single stage of the flow. A step fails either with business-rule
// violations or with an error; both stop the flow.
type Step interface {
	Name() string
	Execute(ctx context.Context, campaignID int) (violations []string, err error)
}

// Result is the outcome of a flow run. Errors holds validation violations and
// Err holds a raised fault; at most one is set.
type Result struct {
	Status     string
	Step       string
	Errors     []string
	Err        error
	Message    string
	CampaignID int
}

// Lifecycle is the part of the campaign service the flow depends on.
type Lifecycle interface {
	GetCampaign(ctx context.Context, id int) (*model.Campaign, error)
	ValidateCampaign(ctx context.Context, id int) (*service.ValidationResult, error)
	SetupCampaign(ctx context.Context, id int) (*service.SetupResult, error)
	LaunchCampaign(ctx context.Context, id int) (*model.Campaign, error)
}

// Orchestrator runs its steps strictly in order and stops at the first one
// that does not succeed. Every step commits on its own, so a later step sees
// the earlier step's state.
type Orchestrator struct {
	lookup func(ctx context.Context, id int) error
	steps  []Step
	log    *zap.Logger
}

func NewOrchestrator(lookup func(ctx context.Context, id int) error, steps []Step, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{lookup: lookup, steps: steps, log: log}
}

// NewLaunchFlow wires the validation, setup and launch stages.
func NewLaunchFlow(svc Lifecycle, log *zap.Logger) *Orchestrator {
	lookup := func(ctx context.Context, id int) error {
		_, err := svc.GetCampaign(ctx, id)
		return err
	}
	return NewOrchestrator(lookup, []Step{
		validationStep{svc: svc},
		setupStep{svc: svc},
		launchStep{svc: svc},
	}, log)
}

// Run executes the flow for one campaign. A campaign that cannot be resolved
// fails at the first step without running it. The returned error is non-nil
// only when ctx is already done.
func (o *Orchestrator) Run(ctx context.Context, campaignID int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if o.lookup != nil {
		if err := o.lookup(ctx, campaignID); err != nil {
			return &Result{Status: StatusFailed, Step: o.firstStep(), Err: err, CampaignID: campaignID}, nil
		}
	}

	log := o.log.With(zap.Int("campaign_id", campaignID))
	log.Info("starting full launch flow")

	for _, step := range o.steps {
		log.Debug("executing step", zap.String("step", step.Name()))

		violations, err := step.Execute(ctx, campaignID)
		if err != nil {
			log.Warn("flow step raised a fault", zap.String("step", step.Name()), zap.Error(err))
			return &Result{Status: StatusFailed, Step: step.Name(), Err: err, CampaignID: campaignID}, nil
		}
		if len(violations) > 0 {
			log.Info("flow step rejected campaign", zap.String("step", step.Name()), zap.Strings("errors", violations))
			return &Result{Status: StatusFailed, Step: step.Name(), Errors: violations, CampaignID: campaignID}, nil
		}
	}

	last := ""
	if n := len(o.steps); n > 0 {
		last = o.steps[n-1].Name()
	}
	log.Info("full launch flow completed")
	return &Result{
		Status:     StatusSuccess,
		Step:       last,
		Message:    "Campaign launched successfully",
		CampaignID: campaignID,
	}, nil
}

func (o *Orchestrator) firstStep() string {
	if len(o.steps) == 0 {
		return ""
	}
	return o.steps[0].Name()
}
