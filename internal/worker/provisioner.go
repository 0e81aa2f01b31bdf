package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/michaelayoade/isp-framework/internal/queue/domain"
)

// Provisioner executes the external provisioning operation for a claimed
// job. Implementations return opaque result data on success; any error means
// the attempt failed and the queue's retry policy takes over.
type Provisioner interface {
	Provision(ctx context.Context, job *domain.Job) (map[string]interface{}, error)
}

// ProvisionFunc handles one service type.
type ProvisionFunc func(ctx context.Context, job *domain.Job) (map[string]interface{}, error)

// ServiceProvisioner dispatches jobs to handlers registered per service
// type. The built-in handlers simulate activation against the upstream
// provisioning systems; deployments register real ones over them.
type ServiceProvisioner struct {
	logger   *slog.Logger
	handlers map[string]ProvisionFunc
}

// NewServiceProvisioner creates a provisioner with simulated handlers for
// the standard service types.
func NewServiceProvisioner(logger *slog.Logger) *ServiceProvisioner {
	p := &ServiceProvisioner{
		logger:   logger,
		handlers: make(map[string]ProvisionFunc),
	}

	for _, serviceType := range []string{"internet", "voip", "iptv"} {
		st := serviceType
		p.Register(st, p.simulateActivation(st))
	}

	return p
}

// Register installs or replaces the handler for a service type.
func (p *ServiceProvisioner) Register(serviceType string, fn ProvisionFunc) {
	p.handlers[serviceType] = fn
}

// Provision runs the handler registered for the job's service type.
func (p *ServiceProvisioner) Provision(ctx context.Context, job *domain.Job) (map[string]interface{}, error) {
	handler, ok := p.handlers[job.ServiceType]
	if !ok {
		return nil, fmt.Errorf("no provisioner registered for service type %q", job.ServiceType)
	}

	p.logger.Info("Provisioning service",
		slog.String("job_id", job.JobID),
		slog.String("service_type", job.ServiceType),
		slog.Int64("service_id", job.ServiceID),
	)

	return handler(ctx, job)
}

// simulateActivation stands in for the real upstream call during
// development.
func (p *ServiceProvisioner) simulateActivation(serviceType string) ProvisionFunc {
	return func(ctx context.Context, job *domain.Job) (map[string]interface{}, error) {
		select {
		case <-time.After(2 * time.Second):
			return map[string]interface{}{
				"status":       "activated",
				"service_id":   job.ServiceID,
				"service_type": serviceType,
			}, nil
		case <-ctx.Done():
			return nil, fmt.Errorf("provisioning canceled: %w", ctx.Err())
		}
	}
}
