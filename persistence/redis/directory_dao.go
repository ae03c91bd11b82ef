package redis

import (
	"context"

	rd "github.com/go-redis/redis/v9"
	"github.com/parleyhq/parley/directory"
	"github.com/parleyhq/parley/logger"
	"github.com/parleyhq/parley/model"
	"github.com/parleyhq/parley/persistence"
	"github.com/parleyhq/parley/util"
	"go.uber.org/zap"
)

const AGENT_KEY string = "AGENT"

var _ directory.AgentDirectory = new(redisDirectoryDao)

type redisDirectoryDao struct {
	baseDao
	encoderDecoder util.EncoderDecoder[model.AgentProfile]
}

func NewRedisDirectoryDao(conf Config) *redisDirectoryDao {
	return &redisDirectoryDao{
		baseDao:        *newBaseDao(conf),
		encoderDecoder: util.NewJsonEncoderDecoder[model.AgentProfile](),
	}
}

func (dao *redisDirectoryDao) GetProfile(ctx context.Context, agentId string) (*model.AgentProfile, error) {
	key := dao.getNamespaceKey(AGENT_KEY)
	profileStr, err := dao.redisClient.HGet(ctx, key, agentId).Result()
	if err == rd.Nil {
		return nil, directory.NotFoundError{AgentId: agentId}
	}
	if err != nil {
		logger.Error("error in getting agent profile", zap.String("agentId", agentId), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return dao.encoderDecoder.Decode([]byte(profileStr))
}

func (dao *redisDirectoryDao) ResolveEmail(ctx context.Context, agentIdOrEmail string) (string, error) {
	if directory.IsEmail(agentIdOrEmail) {
		return agentIdOrEmail, nil
	}
	profile, err := dao.GetProfile(ctx, agentIdOrEmail)
	if err != nil {
		return "", err
	}
	return profile.Email, nil
}

func (dao *redisDirectoryDao) SaveProfile(ctx context.Context, profile *model.AgentProfile) error {
	key := dao.getNamespaceKey(AGENT_KEY)
	data, err := dao.encoderDecoder.Encode(*profile)
	if err != nil {
		return err
	}
	if err := dao.redisClient.HSet(ctx, key, profile.Id, string(data)).Err(); err != nil {
		logger.Error("error in saving agent profile", zap.String("agentId", profile.Id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}
