package redis

import (
	"context"
	"strconv"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/sendloop/journey/logger"
	"github.com/sendloop/journey/model"
	"github.com/sendloop/journey/persistence"
	"github.com/sendloop/journey/util"
	"go.uber.org/zap"
)

const SCHEDULE_KEY string = "SCHEDULE"
const SCHEDULE_DUE_KEY string = "SCHEDULE_DUE"
const SCHEDULE_PENDING_KEY string = "SCHEDULE_PENDING"

var _ persistence.ScheduleDao = new(scheduleDao)

// scheduleDao keeps the records in a hash and indexes pending ones in a
// sorted set scored by resumeAt, so a drain is one ZRANGEBYSCORE.
type scheduleDao struct {
	*baseDao
	encoderDecoder util.EncoderDecoder[model.ScheduledExecutionRecord]
}

func (d *scheduleDao) Save(record model.ScheduledExecutionRecord) error {
	data, err := persistence.VerifyRoundTrip(d.encoderDecoder, record, d.backupDir, "schedule")
	if err != nil {
		return err
	}
	ctx := context.Background()
	pipe := d.redisClient.Pipeline()
	pipe.HSet(ctx, d.getNamespaceKey(SCHEDULE_KEY), []string{record.Id, string(data)})
	if record.Status == model.SCHEDULE_STATUS_PENDING {
		member := rd.Z{Score: float64(record.ResumeAt.UnixMilli()), Member: record.Id}
		pipe.ZAdd(ctx, d.getNamespaceKey(SCHEDULE_DUE_KEY), member)
		pipe.SAdd(ctx, d.getNamespaceKey(SCHEDULE_PENDING_KEY, record.EnrollmentId), record.Id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Error("error saving scheduled execution", zap.String("scheduleId", record.Id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (d *scheduleDao) Get(id string) (*model.ScheduledExecutionRecord, error) {
	ctx := context.Background()
	data, err := d.redisClient.HGet(ctx, d.getNamespaceKey(SCHEDULE_KEY), id).Result()
	if err != nil {
		if isNil(err) {
			return nil, nil
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	record, err := d.encoderDecoder.Decode([]byte(data))
	if err != nil {
		logger.Error("dropping unreadable schedule record", zap.String("scheduleId", id), zap.Error(err))
		return nil, nil
	}
	return record, nil
}

func (d *scheduleDao) GetDue(now time.Time) ([]model.ScheduledExecutionRecord, error) {
	ctx := context.Background()
	opt := &rd.ZRangeBy{
		Min: strconv.Itoa(0),
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}
	ids, err := d.redisClient.ZRangeByScore(ctx, d.getNamespaceKey(SCHEDULE_DUE_KEY), opt).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	records := make([]model.ScheduledExecutionRecord, 0, len(ids))
	for _, id := range ids {
		record, err := d.Get(id)
		if err != nil || record == nil || len(record.EnrollmentId) == 0 {
			continue
		}
		if record.Status == model.SCHEDULE_STATUS_PENDING {
			records = append(records, *record)
		}
	}
	return records, nil
}

func (d *scheduleDao) GetPendingByEnrollment(enrollmentId string) ([]model.ScheduledExecutionRecord, error) {
	ctx := context.Background()
	ids, err := d.redisClient.SMembers(ctx, d.getNamespaceKey(SCHEDULE_PENDING_KEY, enrollmentId)).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	records := make([]model.ScheduledExecutionRecord, 0, len(ids))
	for _, id := range ids {
		record, err := d.Get(id)
		if err != nil || record == nil {
			continue
		}
		if record.Status == model.SCHEDULE_STATUS_PENDING {
			records = append(records, *record)
		}
	}
	return records, nil
}

func (d *scheduleDao) Update(record model.ScheduledExecutionRecord) error {
	data, err := persistence.VerifyRoundTrip(d.encoderDecoder, record, d.backupDir, "schedule")
	if err != nil {
		return err
	}
	ctx := context.Background()
	pipe := d.redisClient.Pipeline()
	pipe.HSet(ctx, d.getNamespaceKey(SCHEDULE_KEY), []string{record.Id, string(data)})
	if record.Status != model.SCHEDULE_STATUS_PENDING {
		pipe.ZRem(ctx, d.getNamespaceKey(SCHEDULE_DUE_KEY), record.Id)
		pipe.SRem(ctx, d.getNamespaceKey(SCHEDULE_PENDING_KEY, record.EnrollmentId), record.Id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Error("error updating scheduled execution", zap.String("scheduleId", record.Id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}
