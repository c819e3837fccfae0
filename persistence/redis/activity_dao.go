package redis

import (
	"context"

	"github.com/sendloop/journey/logger"
	"github.com/sendloop/journey/model"
	"github.com/sendloop/journey/persistence"
	"github.com/sendloop/journey/util"
	"go.uber.org/zap"
)

const ACTIVITY_KEY string = "ACTIVITY"

var _ persistence.ActivityDao = new(activityDao)

type activityDao struct {
	*baseDao
	encoderDecoder util.EncoderDecoder[model.ActivityLogRecord]
}

func (d *activityDao) Append(record model.ActivityLogRecord) error {
	data, err := persistence.VerifyRoundTrip(d.encoderDecoder, record, d.backupDir, "activity")
	if err != nil {
		return err
	}
	key := d.getNamespaceKey(ACTIVITY_KEY)
	ctx := context.Background()
	pipe := d.redisClient.Pipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, int64(persistence.ActivityLogCap-1))
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Error("error appending activity record", zap.String("enrollmentId", record.EnrollmentId), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (d *activityDao) GetByEnrollment(enrollmentId string) ([]model.ActivityLogRecord, error) {
	key := d.getNamespaceKey(ACTIVITY_KEY)
	ctx := context.Background()
	values, err := d.redisClient.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	var records []model.ActivityLogRecord
	// list is newest first; walk backwards for chronological order
	for i := len(values) - 1; i >= 0; i-- {
		record, err := d.encoderDecoder.Decode([]byte(values[i]))
		if err != nil || len(record.Id) == 0 || len(record.EnrollmentId) == 0 {
			continue
		}
		if record.EnrollmentId == enrollmentId {
			records = append(records, *record)
		}
	}
	return records, nil
}
