package cache

import (
	"fmt"
	"time"

	"github.com/parleyhq/parley/model"
	c "github.com/patrickmn/go-cache"
)

// FlowStateCache remembers terminal flow statuses so the hot reject paths
// (duplicate webhooks, late replies) can skip a storage round trip.
type FlowStateCache struct {
	cache *c.Cache
}

func NewFlowStateCache() *FlowStateCache {
	return &FlowStateCache{
		cache: c.New(24*time.Hour, 10*time.Minute),
	}
}

func (ch *FlowStateCache) MarkTerminal(flowId string, status model.FlowStatus) {
	if !status.IsTerminal() {
		return
	}
	ch.cache.Set(flowId, string(status), c.DefaultExpiration)
}

func (ch *FlowStateCache) GetTerminal(flowId string) (model.FlowStatus, bool) {
	statusStr, found := ch.cache.Get(flowId)
	if found {
		return model.FlowStatus(fmt.Sprintf("%v", statusStr)), true
	}
	return model.FlowStatus(""), false
}
