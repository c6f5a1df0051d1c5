package flow

import "context"

type validationStep struct{ svc Lifecycle }

func (validationStep) Name() string { return "validation" }

func (s validationStep) Execute(ctx context.Context, id int) ([]string, error) {
	result, err := s.svc.ValidateCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if !result.IsValid {
		return result.ValidationErrors, nil
	}
	return nil, nil
}

type setupStep struct{ svc Lifecycle }

func (setupStep) Name() string { return "setup" }

func (s setupStep) Execute(ctx context.Context, id int) ([]string, error) {
	result, err := s.svc.SetupCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if !result.SetupComplete {
		return []string{"Setup failed"}, nil
	}
	return nil, nil
}

type launchStep struct{ svc Lifecycle }

func (launchStep) Name() string { return "launch" }

func (s launchStep) Execute(ctx context.Context, id int) ([]string, error) {
	_, err := s.svc.LaunchCampaign(ctx, id)
	return nil, err
}
