// Package platform manages experiments on the Intura dashboard.
package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/intura-ai/intura-go/pkg/intura"
)

var (
	ErrMissingName       = errors.New("experiment name is required")
	ErrNoTreatments      = errors.New("experiment needs at least one treatment")
	ErrInvalidTreatment  = errors.New("invalid treatment")
	ErrMissingExperiment = errors.New("experiment id is required")
)

// Client is the part of the dashboard API Platform uses.
type Client interface {
	ListExperiments(ctx context.Context) ([]intura.Experiment, error)
	CreateExperiment(ctx context.Context, exp intura.Experiment) (string, error)
	ExperimentDetail(ctx context.Context, id string) (*intura.Experiment, error)
	ListModels(ctx context.Context) ([]intura.Model, error)
}

type Platform struct {
	client Client
}

func New(client Client) *Platform {
	return &Platform{client: client}
}

// CreateExperiment validates exp and registers it, returning the new
// experiment id.
func (p *Platform) CreateExperiment(ctx context.Context, exp intura.Experiment) (string, error) {
	if err := Validate(exp); err != nil {
		return "", err
	}
	id, err := p.client.CreateExperiment(ctx, exp)
	if err != nil {
		return "", fmt.Errorf("failed to create experiment %q: %w", exp.Name, err)
	}
	return id, nil
}

func (p *Platform) Experiments(ctx context.Context) ([]intura.Experiment, error) {
	exps, err := p.client.ListExperiments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	return exps, nil
}

func (p *Platform) Experiment(ctx context.Context, id string) (*intura.Experiment, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrMissingExperiment
	}
	exp, err := p.client.ExperimentDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get experiment %s: %w", id, err)
	}
	return exp, nil
}

func (p *Platform) Models(ctx context.Context) ([]intura.Model, error) {
	models, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return models, nil
}

// Validate checks that exp has a name and every treatment names a model and
// a provider.
func Validate(exp intura.Experiment) error {
	if strings.TrimSpace(exp.Name) == "" {
		return ErrMissingName
	}
	if len(exp.Treatments) == 0 {
		return ErrNoTreatments
	}
	for i, t := range exp.Treatments {
		switch {
		case strings.TrimSpace(t.ModelName) == "":
			return fmt.Errorf("%w %d: model name is required", ErrInvalidTreatment, i)
		case strings.TrimSpace(t.ModelProvider) == "":
			return fmt.Errorf("%w %d: model provider is required", ErrInvalidTreatment, i)
		}
	}
	return nil
}
