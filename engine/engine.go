package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/sendloop/journey/directory"
	"github.com/sendloop/journey/dispatch"
	"github.com/sendloop/journey/logger"
	"github.com/sendloop/journey/model"
	"github.com/sendloop/journey/persistence"
	"go.uber.org/zap"
)

const activeJourneysCacheKey string = "active-journeys"

// Engine advances enrollments through journey graphs. Each advance call
// is a synchronous chain: trigger matching, node execution and scheduler
// draining all run on the caller's goroutine; concurrency across
// enrollments is guarded by the store's optimistic versioning.
type Engine struct {
	storage      persistence.Storage
	directory    directory.Service
	mutator      directory.Mutator
	sender       dispatch.Sender
	evaluator    *Evaluator
	journeyCache *cache.Cache
	now          func() time.Time
}

func New(storage persistence.Storage, dir directory.Service, mutator directory.Mutator, sender dispatch.Sender) *Engine {
	return &Engine{
		storage:      storage,
		directory:    dir,
		mutator:      mutator,
		sender:       sender,
		evaluator:    NewEvaluator(dir),
		journeyCache: cache.New(30*time.Second, time.Minute),
		now:          time.Now,
	}
}

func (e *Engine) activeJourneys() []model.JourneyDefinition {
	if cached, ok := e.journeyCache.Get(activeJourneysCacheKey); ok {
		return cached.([]model.JourneyDefinition)
	}
	all, err := e.storage.Journeys().GetAll()
	if err != nil {
		logger.Error("error loading journeys", zap.Error(err))
		return nil
	}
	var active []model.JourneyDefinition
	for _, j := range all {
		if j.Status == model.JOURNEY_STATUS_ACTIVE {
			active = append(active, j)
		}
	}
	e.journeyCache.Set(activeJourneysCacheKey, active, cache.DefaultExpiration)
	return active
}

func (e *Engine) logActivity(enrollmentId string, eventType string, data map[string]any) {
	record := model.ActivityLogRecord{
		Id:           uuid.New().String(),
		EnrollmentId: enrollmentId,
		Timestamp:    e.now(),
		EventType:    eventType,
		Data:         data,
	}
	if err := e.storage.Activities().Append(record); err != nil {
		logger.Error("error appending activity", zap.String("enrollmentId", enrollmentId), zap.String("eventType", eventType), zap.Error(err))
	}
}

func (e *Engine) saveEnrollment(enrollment *model.Enrollment) error {
	if err := e.storage.Enrollments().Save(enrollment); err != nil {
		logger.Error("error saving enrollment", zap.String("enrollmentId", enrollment.Id), zap.Error(err))
		return err
	}
	return nil
}
