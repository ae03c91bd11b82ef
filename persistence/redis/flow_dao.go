package redis

import (
	"context"
	"errors"

	rd "github.com/go-redis/redis/v9"
	"github.com/parleyhq/parley/logger"
	"github.com/parleyhq/parley/model"
	"github.com/parleyhq/parley/persistence"
	"github.com/parleyhq/parley/util"
	"go.uber.org/zap"
)

const FLOW_KEY string = "FLOW"
const AGENTS_KEY string = "AGENTS"

var _ persistence.FlowStore = new(redisFlowDao)

type redisFlowDao struct {
	baseDao
	encoderDecoder util.EncoderDecoder[model.Flow]
}

func NewRedisFlowDao(conf Config) *redisFlowDao {
	return &redisFlowDao{
		baseDao:        *newBaseDao(conf),
		encoderDecoder: util.NewJsonEncoderDecoder[model.Flow](),
	}
}

func (rf *redisFlowDao) Save(flow *model.Flow) error {
	key := rf.getNamespaceKey(FLOW_KEY, flow.AgentId)
	ctx := context.Background()
	flow.Version = flow.Version + 1
	data, err := rf.encoderDecoder.Encode(*flow)
	if err != nil {
		flow.Version = flow.Version - 1
		return err
	}
	pipe := rf.redisClient.TxPipeline()
	pipe.HSet(ctx, key, flow.Id, string(data))
	pipe.SAdd(ctx, rf.getNamespaceKey(AGENTS_KEY), flow.AgentId)
	if _, err := pipe.Exec(ctx); err != nil {
		flow.Version = flow.Version - 1
		logger.Error("error in saving flow", zap.String("agentId", flow.AgentId), zap.String("flowId", flow.Id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rf *redisFlowDao) SaveIf(flow *model.Flow, expectedVersion int64) error {
	key := rf.getNamespaceKey(FLOW_KEY, flow.AgentId)
	ctx := context.Background()
	err := rf.redisClient.Watch(ctx, func(tx *rd.Tx) error {
		stored, err := tx.HGet(ctx, key, flow.Id).Result()
		var storedVersion int64
		switch {
		case err == rd.Nil:
			storedVersion = 0
		case err != nil:
			return err
		default:
			storedFlow, derr := rf.encoderDecoder.Decode([]byte(stored))
			if derr != nil {
				return derr
			}
			storedVersion = storedFlow.Version
		}
		if storedVersion != expectedVersion {
			return persistence.VersionConflictError{FlowId: flow.Id, Expected: expectedVersion, Actual: storedVersion}
		}
		next := *flow
		next.Version = expectedVersion + 1
		data, err := rf.encoderDecoder.Encode(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
			pipe.HSet(ctx, key, flow.Id, string(data))
			pipe.SAdd(ctx, rf.getNamespaceKey(AGENTS_KEY), flow.AgentId)
			return nil
		})
		return err
	}, key)
	if err != nil {
		var conflict persistence.VersionConflictError
		if errors.As(err, &conflict) {
			return conflict
		}
		if err == rd.TxFailedErr {
			return persistence.VersionConflictError{FlowId: flow.Id, Expected: expectedVersion, Actual: -1}
		}
		logger.Error("error in conditional save of flow", zap.String("agentId", flow.AgentId), zap.String("flowId", flow.Id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	flow.Version = expectedVersion + 1
	return nil
}

func (rf *redisFlowDao) Load(agentId string, flowId string) (*model.Flow, error) {
	key := rf.getNamespaceKey(FLOW_KEY, agentId)
	ctx := context.Background()
	flowStr, err := rf.redisClient.HGet(ctx, key, flowId).Result()
	if err == rd.Nil {
		return nil, persistence.NotFoundError{AgentId: agentId, FlowId: flowId}
	}
	if err != nil {
		logger.Error("error in getting flow", zap.String("agentId", agentId), zap.String("flowId", flowId), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	flow, err := rf.encoderDecoder.Decode([]byte(flowStr))
	if err != nil {
		return nil, err
	}
	return flow, nil
}

func (rf *redisFlowDao) List(agentId string, statuses ...model.FlowStatus) ([]*model.Flow, error) {
	key := rf.getNamespaceKey(FLOW_KEY, agentId)
	ctx := context.Background()
	entries, err := rf.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		logger.Error("error in listing flows", zap.String("agentId", agentId), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	flows := make([]*model.Flow, 0, len(entries))
	for _, flowStr := range entries {
		flow, err := rf.encoderDecoder.Decode([]byte(flowStr))
		if err != nil {
			logger.Error("can not decode stored flow", zap.String("agentId", agentId), zap.Error(err))
			continue
		}
		if matchesStatus(flow, statuses) {
			flows = append(flows, flow)
		}
	}
	return flows, nil
}

func (rf *redisFlowDao) Agents() ([]string, error) {
	ctx := context.Background()
	agents, err := rf.redisClient.SMembers(ctx, rf.getNamespaceKey(AGENTS_KEY)).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return agents, nil
}

func matchesStatus(flow *model.Flow, statuses []model.FlowStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if flow.Status == s {
			return true
		}
	}
	return false
}
