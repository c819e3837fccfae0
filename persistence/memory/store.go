package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/sendloop/journey/model"
	"github.com/sendloop/journey/persistence"
	"github.com/sendloop/journey/util"
)

// Store keeps all four collections in process memory. It backs tests and
// single-node development; the redis implementation is the durable one.
type Store struct {
	journeys    *journeyDao
	enrollments *enrollmentDao
	activities  *activityDao
	schedules   *scheduleDao
}

var _ persistence.Storage = new(Store)

func NewStore(backupDir string) *Store {
	return &Store{
		journeys: &journeyDao{
			records:   make(map[string][]byte),
			encdec:    util.NewJsonEncoderDecoder[model.JourneyDefinition](),
			backupDir: backupDir,
		},
		enrollments: &enrollmentDao{
			records:   make(map[string][]byte),
			encdec:    util.NewJsonEncoderDecoder[model.Enrollment](),
			backupDir: backupDir,
		},
		activities: &activityDao{
			encdec:    util.NewJsonEncoderDecoder[model.ActivityLogRecord](),
			backupDir: backupDir,
		},
		schedules: &scheduleDao{
			records:   make(map[string][]byte),
			encdec:    util.NewJsonEncoderDecoder[model.ScheduledExecutionRecord](),
			backupDir: backupDir,
		},
	}
}

func (s *Store) Journeys() persistence.JourneyDao       { return s.journeys }
func (s *Store) Enrollments() persistence.EnrollmentDao { return s.enrollments }
func (s *Store) Activities() persistence.ActivityDao    { return s.activities }
func (s *Store) Schedules() persistence.ScheduleDao     { return s.schedules }

type journeyDao struct {
	mu        sync.RWMutex
	records   map[string][]byte
	encdec    util.EncoderDecoder[model.JourneyDefinition]
	backupDir string
}

func (d *journeyDao) Save(journey model.JourneyDefinition) error {
	data, err := persistence.VerifyRoundTrip(d.encdec, journey, d.backupDir, "journey")
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records[journey.Id] = data
	return nil
}

func (d *journeyDao) Get(id string) (*model.JourneyDefinition, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	data, ok := d.records[id]
	if !ok {
		return nil, nil
	}
	journey, err := d.encdec.Decode(data)
	if err != nil {
		return nil, nil
	}
	return journey, nil
}

func (d *journeyDao) GetAll() ([]model.JourneyDefinition, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	journeys := make([]model.JourneyDefinition, 0, len(d.records))
	for _, data := range d.records {
		journey, err := d.encdec.Decode(data)
		if err != nil || len(journey.Id) == 0 {
			continue
		}
		journeys = append(journeys, *journey)
	}
	sort.Slice(journeys, func(i, j int) bool { return journeys[i].Id < journeys[j].Id })
	return journeys, nil
}

type enrollmentDao struct {
	mu        sync.RWMutex
	records   map[string][]byte
	encdec    util.EncoderDecoder[model.Enrollment]
	backupDir string
}

func (d *enrollmentDao) Save(enrollment *model.Enrollment) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.records[enrollment.Id]; ok {
		current, err := d.encdec.Decode(existing)
		if err == nil && current.Version != enrollment.Version {
			return persistence.VersionConflictError{EnrollmentId: enrollment.Id}
		}
	}
	enrollment.Version++
	data, err := persistence.VerifyRoundTrip(d.encdec, *enrollment, d.backupDir, "enrollment")
	if err != nil {
		enrollment.Version--
		return err
	}
	d.records[enrollment.Id] = data
	return nil
}

func (d *enrollmentDao) Get(id string) (*model.Enrollment, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	data, ok := d.records[id]
	if !ok {
		return nil, nil
	}
	enrollment, err := d.encdec.Decode(data)
	if err != nil {
		return nil, nil
	}
	return enrollment, nil
}

func (d *enrollmentDao) GetByJourney(journeyId string) ([]model.Enrollment, error) {
	return d.filter(func(e *model.Enrollment) bool { return e.JourneyId == journeyId })
}

func (d *enrollmentDao) GetByCustomer(customerId string) ([]model.Enrollment, error) {
	return d.filter(func(e *model.Enrollment) bool { return e.CustomerId == customerId })
}

func (d *enrollmentDao) filter(match func(*model.Enrollment) bool) ([]model.Enrollment, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []model.Enrollment
	for _, data := range d.records {
		enrollment, err := d.encdec.Decode(data)
		if err != nil || len(enrollment.Id) == 0 || len(enrollment.JourneyId) == 0 {
			continue
		}
		if match(enrollment) {
			out = append(out, *enrollment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnteredAt.Before(out[j].EnteredAt) })
	return out, nil
}

type activityDao struct {
	mu        sync.RWMutex
	records   [][]byte
	encdec    util.EncoderDecoder[model.ActivityLogRecord]
	backupDir string
}

func (d *activityDao) Append(record model.ActivityLogRecord) error {
	data, err := persistence.VerifyRoundTrip(d.encdec, record, d.backupDir, "activity")
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = append(d.records, data)
	if len(d.records) > persistence.ActivityLogCap {
		d.records = d.records[len(d.records)-persistence.ActivityLogCap:]
	}
	return nil
}

func (d *activityDao) GetByEnrollment(enrollmentId string) ([]model.ActivityLogRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []model.ActivityLogRecord
	for _, data := range d.records {
		record, err := d.encdec.Decode(data)
		if err != nil || len(record.Id) == 0 || len(record.EnrollmentId) == 0 {
			continue
		}
		if record.EnrollmentId == enrollmentId {
			out = append(out, *record)
		}
	}
	return out, nil
}

type scheduleDao struct {
	mu        sync.RWMutex
	records   map[string][]byte
	encdec    util.EncoderDecoder[model.ScheduledExecutionRecord]
	backupDir string
}

func (d *scheduleDao) Save(record model.ScheduledExecutionRecord) error {
	data, err := persistence.VerifyRoundTrip(d.encdec, record, d.backupDir, "schedule")
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records[record.Id] = data
	return nil
}

func (d *scheduleDao) Get(id string) (*model.ScheduledExecutionRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	data, ok := d.records[id]
	if !ok {
		return nil, nil
	}
	record, err := d.encdec.Decode(data)
	if err != nil {
		return nil, nil
	}
	return record, nil
}

func (d *scheduleDao) GetDue(now time.Time) ([]model.ScheduledExecutionRecord, error) {
	due, err := d.filter(func(r *model.ScheduledExecutionRecord) bool {
		return r.Status == model.SCHEDULE_STATUS_PENDING && !r.ResumeAt.After(now)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ResumeAt.Before(due[j].ResumeAt) })
	return due, nil
}

func (d *scheduleDao) GetPendingByEnrollment(enrollmentId string) ([]model.ScheduledExecutionRecord, error) {
	return d.filter(func(r *model.ScheduledExecutionRecord) bool {
		return r.Status == model.SCHEDULE_STATUS_PENDING && r.EnrollmentId == enrollmentId
	})
}

func (d *scheduleDao) Update(record model.ScheduledExecutionRecord) error {
	return d.Save(record)
}

func (d *scheduleDao) filter(match func(*model.ScheduledExecutionRecord) bool) ([]model.ScheduledExecutionRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []model.ScheduledExecutionRecord
	for _, data := range d.records {
		record, err := d.encdec.Decode(data)
		if err != nil || len(record.Id) == 0 || len(record.EnrollmentId) == 0 {
			continue
		}
		if match(record) {
			out = append(out, *record)
		}
	}
	return out, nil
}
