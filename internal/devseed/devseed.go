// Package devseed populates a development database with sample trip-planning
// data: a demo owner with one completed job and its itinerary, plus one failed
// job for exercising error rendering. Seeding goes through the service layer
// so it is idempotent the same way live traffic is.
package devseed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/wayfinderhq/wayfinder/internal/data"
	"github.com/wayfinderhq/wayfinder/internal/domain/model"
	"github.com/wayfinderhq/wayfinder/internal/service"
)

// DemoOwnerID is the owner all seeded records belong to.
const DemoOwnerID = "u-demo"

// Services bundles the dependencies needed for development seeding.
type Services struct {
	DB          *sql.DB
	jobs        *service.JobService
	itineraries *service.ItineraryService
}

// NewServices constructs all required services for seeding using the provided DB.
func NewServices(db *sql.DB) Services {
	jobService := service.MustNewJobService(service.JobServiceOptions{
		Repo: data.NewJobRepo(db, data.RepoConfig{}),
	})
	itineraryService := service.MustNewItineraryService(service.ItineraryServiceOptions{
		Repo: data.NewItineraryRepo(db, data.RepoConfig{}),
	})

	return Services{
		DB:          db,
		jobs:        jobService,
		itineraries: itineraryService,
	}
}

// Run executes the full development seeding workflow against the provided DB.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	failures := 0
	failures += seedItineraries(ctx, svcs.itineraries, logger)
	failures += seedJobs(ctx, svcs.jobs, logger)

	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

type seededJob struct {
	requestID    string
	status       model.JobStatus
	progress     []string
	finalMessage string
	itineraryID  string
}

func seedJobs(ctx context.Context, svc *service.JobService, logger *slog.Logger) int {
	failures := 0
	for _, job := range demoJobs() {
		created, err := seedJob(ctx, svc, job)
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to seed job", "request_id", job.requestID, "error", err)
			}
			failures++
			continue
		}
		if logger != nil {
			msg := "job already exists"
			if created {
				msg = "created job"
			}
			logger.InfoContext(ctx, msg, "request_id", job.requestID, "status", job.status)
		}
	}
	return failures
}

// seedJob replays one job's lifecycle: create, progress, terminal write. A
// request id that already has a record is left untouched.
func seedJob(ctx context.Context, svc *service.JobService, job seededJob) (bool, error) {
	created, err := svc.Create(ctx, &model.CreateJobRequest{
		OwnerID:   DemoOwnerID,
		RequestID: job.requestID,
		Meta:      map[string]any{"seeded": true},
	})
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}

	for _, line := range job.progress {
		svc.AppendProgress(ctx, DemoOwnerID, job.requestID, line)
	}

	svc.Complete(ctx, &model.CompleteJobRequest{
		OwnerID:           DemoOwnerID,
		RequestID:         job.requestID,
		Status:            job.status,
		FinalMessage:      job.finalMessage,
		ResultItineraryID: job.itineraryID,
	})
	return true, nil
}

func demoJobs() []seededJob {
	return []seededJob{
		{
			requestID: "demo-lisbon",
			status:    model.JobStatusSucceeded,
			progress: []string{
				"STATUS: researching Lisbon highlights",
				"TOOL: http_request",
				"STATUS: drafting 3-day outline",
				"TOOL: save_itinerary",
			},
			finalMessage: "RESULT: itinerary_id=" + demoItineraryID(),
			itineraryID:  demoItineraryID(),
		},
		{
			requestID: "demo-timeout",
			status:    model.JobStatusFailed,
			progress: []string{
				"STATUS: researching Reykjavik in winter",
			},
			finalMessage: "planning timed out after 10m0s",
		},
	}
}

func seedItineraries(ctx context.Context, svc *service.ItineraryService, logger *slog.Logger) int {
	failures := 0
	for _, doc := range demoItineraries() {
		result, err := svc.Save(ctx, DemoOwnerID, doc, "")
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to seed itinerary", "error", err)
			}
			failures++
			continue
		}
		if logger != nil {
			msg := "itinerary already exists"
			if result.Created {
				msg = "created itinerary"
			}
			logger.InfoContext(ctx, msg, "itinerary_id", result.ID)
		}
	}
	return failures
}

func demoItineraryID() string {
	return "it-demo-lisbon"
}

func demoItineraries() []map[string]any {
	return []map[string]any{
		{
			"itineraryId": demoItineraryID(),
			"destination": "Lisbon, Portugal",
			"startDate":   "2026-09-12",
			"endDate":     "2026-09-14",
			"items": []any{
				map[string]any{
					"day":     1,
					"date":    "2026-09-12",
					"summary": "Alfama and the riverfront",
					"activities": []any{
						map[string]any{"name": "Castelo de São Jorge", "notes": "go early to beat tour groups"},
						map[string]any{"name": "Tram 28 loop"},
						map[string]any{"name": "Fado dinner in Alfama"},
					},
				},
				map[string]any{
					"day":     2,
					"date":    "2026-09-13",
					"summary": "Belém monuments",
					"activities": []any{
						map[string]any{"name": "Jerónimos Monastery"},
						map[string]any{"name": "Pastéis de Belém"},
						map[string]any{"name": "MAAT riverside walk"},
					},
				},
				map[string]any{
					"day":     3,
					"date":    "2026-09-14",
					"summary": "Day trip to Sintra",
					"activities": []any{
						map[string]any{"name": "Pena Palace", "notes": "buy timed tickets ahead"},
						map[string]any{"name": "Quinta da Regaleira"},
					},
				},
			},
			"sources": []any{
				map[string]any{"title": "Lisbon tourism board", "url": "https://www.visitlisboa.com"},
			},
		},
	}
}
