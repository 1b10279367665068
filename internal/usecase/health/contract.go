package health

import "context"

// StorePinger checks question store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks an external model provider (embedding or extraction).
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}
