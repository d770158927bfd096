package usecase

import (
	"context"
	"sort"

	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/domain/models"
)

// ListDeploymentsParams contains parameters for listing deployments
type ListDeploymentsParams struct {
	ContractName string
	Type         models.DeploymentType
	// IncludeProxyParts lists the _Proxy and _Implementation records too
	IncludeProxyParts bool
}

// DeploymentListResult contains the listed deployments and summary statistics
type DeploymentListResult struct {
	Network     string
	Deployments []*models.Deployment
	Summary     DeploymentSummary
}

// DeploymentSummary counts deployments by type
type DeploymentSummary struct {
	Total  int
	ByType map[models.DeploymentType]int
}

// ListDeployments is the use case for listing deployments
type ListDeployments struct {
	store DeploymentStore
	sink  ProgressSink
}

// NewListDeployments creates a new ListDeployments use case
func NewListDeployments(store DeploymentStore, sink ProgressSink) *ListDeployments {
	if sink == nil {
		sink = NopProgress{}
	}
	return &ListDeployments{
		store: store,
		sink:  sink,
	}
}

// Run executes the list deployments use case
func (uc *ListDeployments) Run(ctx context.Context, env *domain.Env, params ListDeploymentsParams) (*DeploymentListResult, error) {
	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "loading",
		Message: "Loading deployments",
		Spinner: true,
	})

	all, err := uc.store.ListDeployments(ctx, env.Network.Name)
	if err != nil {
		return nil, err
	}

	deployments := make([]*models.Deployment, 0, len(all))
	for _, d := range all {
		if !params.IncludeProxyParts && d.IsProxyPart() {
			continue
		}
		if params.ContractName != "" && d.ContractName != params.ContractName && d.Name != params.ContractName {
			continue
		}
		if params.Type != "" && d.Type != params.Type {
			continue
		}
		deployments = append(deployments, d)
	}

	sortDeployments(deployments)

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "complete",
		Current: len(deployments),
		Total:   len(deployments),
		Message: "Deployments loaded",
	})

	return &DeploymentListResult{
		Network:     env.Network.Name,
		Deployments: deployments,
		Summary:     calculateSummary(deployments),
	}, nil
}

// sortDeployments sorts deployments by name, then contract name
func sortDeployments(deployments []*models.Deployment) {
	sort.Slice(deployments, func(i, j int) bool {
		if deployments[i].Name != deployments[j].Name {
			return deployments[i].Name < deployments[j].Name
		}
		return deployments[i].ContractName < deployments[j].ContractName
	})
}

func calculateSummary(deployments []*models.Deployment) DeploymentSummary {
	summary := DeploymentSummary{
		Total:  len(deployments),
		ByType: make(map[models.DeploymentType]int),
	}
	for _, dep := range deployments {
		summary.ByType[dep.Type]++
	}
	return summary
}
