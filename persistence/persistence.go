package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sendloop/journey/logger"
	"github.com/sendloop/journey/model"
	"github.com/sendloop/journey/util"
	"go.uber.org/zap"
)

// ActivityLogCap bounds the per-enrollment activity log; the oldest
// entries are dropped on overflow.
const ActivityLogCap int = 500

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

type VersionConflictError struct {
	EnrollmentId string
}

func (e VersionConflictError) Error() string {
	return fmt.Sprintf("enrollment %s was modified concurrently", e.EnrollmentId)
}

type JourneyDao interface {
	Save(journey model.JourneyDefinition) error
	Get(id string) (*model.JourneyDefinition, error)
	GetAll() ([]model.JourneyDefinition, error)
}

// EnrollmentDao persists enrollments with optimistic concurrency: Save
// rejects a write whose Version does not match the stored record and
// bumps Version on success.
type EnrollmentDao interface {
	Save(enrollment *model.Enrollment) error
	Get(id string) (*model.Enrollment, error)
	GetByJourney(journeyId string) ([]model.Enrollment, error)
	GetByCustomer(customerId string) ([]model.Enrollment, error)
}

type ActivityDao interface {
	Append(record model.ActivityLogRecord) error
	GetByEnrollment(enrollmentId string) ([]model.ActivityLogRecord, error)
}

type ScheduleDao interface {
	Save(record model.ScheduledExecutionRecord) error
	Get(id string) (*model.ScheduledExecutionRecord, error)
	GetDue(now time.Time) ([]model.ScheduledExecutionRecord, error)
	GetPendingByEnrollment(enrollmentId string) ([]model.ScheduledExecutionRecord, error)
	Update(record model.ScheduledExecutionRecord) error
}

type Storage interface {
	Journeys() JourneyDao
	Enrollments() EnrollmentDao
	Activities() ActivityDao
	Schedules() ScheduleDao
}

// VerifyRoundTrip encodes a record and decodes it back before the write
// is committed. A payload that cannot survive the round trip is dumped
// to a timestamped backup file and the error propagated, so a corrupt
// value never reaches the primary store.
func VerifyRoundTrip[T any](encdec util.EncoderDecoder[T], value T, backupDir string, name string) ([]byte, error) {
	data, err := encdec.Encode(value)
	if err != nil {
		writeBackup(backupDir, name, []byte(fmt.Sprintf("%+v", value)))
		return nil, StorageLayerError{Message: err.Error()}
	}
	if _, err := encdec.Decode(data); err != nil {
		writeBackup(backupDir, name, data)
		return nil, StorageLayerError{Message: err.Error()}
	}
	return data, nil
}

func writeBackup(backupDir string, name string, payload []byte) {
	if len(backupDir) == 0 {
		backupDir = os.TempDir()
	}
	file := filepath.Join(backupDir, fmt.Sprintf("%s-backup-%d.json", name, time.Now().UnixNano()))
	if err := os.WriteFile(file, payload, 0644); err != nil {
		logger.Error("error writing backup snapshot", zap.String("file", file), zap.Error(err))
		return
	}
	logger.Error("record failed serialization round trip, backup written", zap.String("file", file))
}
