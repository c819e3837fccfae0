package redis

import (
	"context"

	"github.com/sendloop/journey/logger"
	"github.com/sendloop/journey/model"
	"github.com/sendloop/journey/persistence"
	"github.com/sendloop/journey/util"
	"go.uber.org/zap"
)

const JOURNEY_KEY string = "JOURNEY"

var _ persistence.JourneyDao = new(journeyDao)

type journeyDao struct {
	*baseDao
	encoderDecoder util.EncoderDecoder[model.JourneyDefinition]
}

func (d *journeyDao) Save(journey model.JourneyDefinition) error {
	data, err := persistence.VerifyRoundTrip(d.encoderDecoder, journey, d.backupDir, "journey")
	if err != nil {
		return err
	}
	key := d.getNamespaceKey(JOURNEY_KEY)
	ctx := context.Background()
	if err := d.redisClient.HSet(ctx, key, []string{journey.Id, string(data)}).Err(); err != nil {
		logger.Error("error in saving journey", zap.String("journeyId", journey.Id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (d *journeyDao) Get(id string) (*model.JourneyDefinition, error) {
	key := d.getNamespaceKey(JOURNEY_KEY)
	ctx := context.Background()
	data, err := d.redisClient.HGet(ctx, key, id).Result()
	if err != nil {
		if isNil(err) {
			return nil, nil
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	journey, err := d.encoderDecoder.Decode([]byte(data))
	if err != nil {
		logger.Error("dropping unreadable journey record", zap.String("journeyId", id), zap.Error(err))
		return nil, nil
	}
	return journey, nil
}

func (d *journeyDao) GetAll() ([]model.JourneyDefinition, error) {
	key := d.getNamespaceKey(JOURNEY_KEY)
	ctx := context.Background()
	values, err := d.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	journeys := make([]model.JourneyDefinition, 0, len(values))
	for id, data := range values {
		journey, err := d.encoderDecoder.Decode([]byte(data))
		if err != nil || len(journey.Id) == 0 {
			logger.Error("dropping unreadable journey record", zap.String("journeyId", id))
			continue
		}
		journeys = append(journeys, *journey)
	}
	return journeys, nil
}
