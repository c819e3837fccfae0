package redis

import (
	"github.com/sendloop/journey/model"
	"github.com/sendloop/journey/persistence"
	"github.com/sendloop/journey/util"
)

// Storage wires the four redis-backed daos behind one client.
type Storage struct {
	journeys    *journeyDao
	enrollments *enrollmentDao
	activities  *activityDao
	schedules   *scheduleDao
}

var _ persistence.Storage = new(Storage)

func NewStorage(conf Config) *Storage {
	base := newBaseDao(conf)
	return &Storage{
		journeys:    &journeyDao{baseDao: base, encoderDecoder: util.NewJsonEncoderDecoder[model.JourneyDefinition]()},
		enrollments: &enrollmentDao{baseDao: base, encoderDecoder: util.NewJsonEncoderDecoder[model.Enrollment]()},
		activities:  &activityDao{baseDao: base, encoderDecoder: util.NewJsonEncoderDecoder[model.ActivityLogRecord]()},
		schedules:   &scheduleDao{baseDao: base, encoderDecoder: util.NewJsonEncoderDecoder[model.ScheduledExecutionRecord]()},
	}
}

func (s *Storage) Journeys() persistence.JourneyDao       { return s.journeys }
func (s *Storage) Enrollments() persistence.EnrollmentDao { return s.enrollments }
func (s *Storage) Activities() persistence.ActivityDao    { return s.activities }
func (s *Storage) Schedules() persistence.ScheduleDao     { return s.schedules }
