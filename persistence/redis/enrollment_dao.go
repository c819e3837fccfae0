package redis

import (
	"context"

	rd "github.com/go-redis/redis/v9"
	"github.com/sendloop/journey/logger"
	"github.com/sendloop/journey/model"
	"github.com/sendloop/journey/persistence"
	"github.com/sendloop/journey/util"
	"go.uber.org/zap"
)

const ENROLLMENT_KEY string = "ENROLLMENT"
const ENROLLMENT_BY_JOURNEY_KEY string = "ENROLLMENT_BY_JOURNEY"
const ENROLLMENT_BY_CUSTOMER_KEY string = "ENROLLMENT_BY_CUSTOMER"

var _ persistence.EnrollmentDao = new(enrollmentDao)

type enrollmentDao struct {
	*baseDao
	encoderDecoder util.EncoderDecoder[model.Enrollment]
}

// Save is optimistic: the enrollment key is watched and the write aborts
// with a VersionConflictError if another writer got there first. The
// scheduler and the event-driven path can therefore not clobber the same
// enrollment.
func (d *enrollmentDao) Save(enrollment *model.Enrollment) error {
	key := d.getNamespaceKey(ENROLLMENT_KEY, enrollment.Id)
	ctx := context.Background()
	txf := func(tx *rd.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		if err != nil && !isNil(err) {
			return persistence.StorageLayerError{Message: err.Error()}
		}
		if err == nil {
			stored, derr := d.encoderDecoder.Decode([]byte(current))
			if derr == nil && stored.Version != enrollment.Version {
				return persistence.VersionConflictError{EnrollmentId: enrollment.Id}
			}
		}
		enrollment.Version++
		data, verr := persistence.VerifyRoundTrip(d.encoderDecoder, *enrollment, d.backupDir, "enrollment")
		if verr != nil {
			enrollment.Version--
			return verr
		}
		_, err = tx.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, d.getNamespaceKey(ENROLLMENT_BY_JOURNEY_KEY, enrollment.JourneyId), enrollment.Id)
			pipe.SAdd(ctx, d.getNamespaceKey(ENROLLMENT_BY_CUSTOMER_KEY, enrollment.CustomerId), enrollment.Id)
			return nil
		})
		return err
	}
	err := d.redisClient.Watch(ctx, txf, key)
	if err == rd.TxFailedErr {
		return persistence.VersionConflictError{EnrollmentId: enrollment.Id}
	}
	return err
}

func (d *enrollmentDao) Get(id string) (*model.Enrollment, error) {
	key := d.getNamespaceKey(ENROLLMENT_KEY, id)
	ctx := context.Background()
	data, err := d.redisClient.Get(ctx, key).Result()
	if err != nil {
		if isNil(err) {
			return nil, nil
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	enrollment, err := d.encoderDecoder.Decode([]byte(data))
	if err != nil {
		logger.Error("dropping unreadable enrollment record", zap.String("enrollmentId", id), zap.Error(err))
		return nil, nil
	}
	return enrollment, nil
}

func (d *enrollmentDao) GetByJourney(journeyId string) ([]model.Enrollment, error) {
	return d.getByIndex(d.getNamespaceKey(ENROLLMENT_BY_JOURNEY_KEY, journeyId))
}

func (d *enrollmentDao) GetByCustomer(customerId string) ([]model.Enrollment, error) {
	return d.getByIndex(d.getNamespaceKey(ENROLLMENT_BY_CUSTOMER_KEY, customerId))
}

func (d *enrollmentDao) getByIndex(indexKey string) ([]model.Enrollment, error) {
	ctx := context.Background()
	ids, err := d.redisClient.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	enrollments := make([]model.Enrollment, 0, len(ids))
	for _, id := range ids {
		enrollment, err := d.Get(id)
		if err != nil || enrollment == nil || len(enrollment.Id) == 0 || len(enrollment.JourneyId) == 0 {
			continue
		}
		enrollments = append(enrollments, *enrollment)
	}
	return enrollments, nil
}
