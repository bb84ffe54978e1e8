// Package mocks provides mock implementations for testing the wayfinder trip-planning system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository
// and planning interfaces. The mocks are generated using go:generate directives and provide a
// fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().CreateIfAbsent(gomock.Any(), gomock.Any()).Return(true, nil)
package mocks

// Generate mock for JobRepository interface from internal/core package.
// This creates MockJobRepository with methods for all JobRepository interface methods:
// CreateIfAbsent, Get, AppendProgress, Complete
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/wayfinderhq/wayfinder/internal/core JobRepository

// Generate mock for ItineraryRepository interface from internal/core package.
// This creates MockItineraryRepository with methods for all ItineraryRepository interface methods:
// CreateIfAbsent, Get, ListRecent
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=itinerary_repository_mock.go github.com/wayfinderhq/wayfinder/internal/core ItineraryRepository

// Generate mock for JanitorRepository interface from internal/core package.
// This creates MockJanitorRepository with methods for all JanitorRepository interface methods:
// FailStaleRunningJobs
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=janitor_repository_mock.go github.com/wayfinderhq/wayfinder/internal/core JanitorRepository

// Generate mock for CacheRepository interface from internal/core package.
// This creates MockCacheRepository with methods for all CacheRepository interface methods:
// Set, Get, Delete, SetIfNotExists, Health
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=cache_repository_mock.go github.com/wayfinderhq/wayfinder/internal/core CacheRepository

// Generate mock for Planner interface from internal/core package.
// This creates MockPlanner with methods for all Planner interface methods:
// Plan
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=planner_mock.go github.com/wayfinderhq/wayfinder/internal/core Planner

// Generate mock for ToolDiscoverer interface from internal/core package.
// This creates MockToolDiscoverer with methods for all ToolDiscoverer interface methods:
// Discover
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=tool_discoverer_mock.go github.com/wayfinderhq/wayfinder/internal/core ToolDiscoverer

// Generate mock for CredentialSource interface from internal/core package.
// This creates MockCredentialSource with methods for all CredentialSource interface methods:
// Token
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=credential_source_mock.go github.com/wayfinderhq/wayfinder/internal/core CredentialSource
