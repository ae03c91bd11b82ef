package analytics

type DataCollectorConfig struct {
	FileName      string
	CollectorType DataCollectorType
}

type DataCollectorType string

const LOG_FILE_DATA_COLLECTOR DataCollectorType = "LOG_FILE_DATA_COLLECTOR"
const NOOP_DATA_COLLECTOR DataCollectorType = "NOOP_DATA_COLLECTOR"

// FlowDataCollector records audit events of the engine: every decision acted
// on and every terminal notification attempt.
type FlowDataCollector interface {
	RecordDecision(agentId string, flowId string, round int, decisionType string, reasoning string)
	RecordNotification(agentId string, flowId string, kind string, to string, failure string)
}

var flowCollector FlowDataCollector = noopCollector{}

func InitDataCollector(config DataCollectorConfig) error {
	switch config.CollectorType {
	case LOG_FILE_DATA_COLLECTOR:
		c, err := NewLogFileDataCollector(config.FileName)
		if err != nil {
			return err
		}
		flowCollector = c
	default:
		flowCollector = noopCollector{}
	}
	return nil
}

func RecordDecision(agentId string, flowId string, round int, decisionType string, reasoning string) {
	flowCollector.RecordDecision(agentId, flowId, round, decisionType, reasoning)
}

func RecordNotification(agentId string, flowId string, kind string, to string, failure string) {
	flowCollector.RecordNotification(agentId, flowId, kind, to, failure)
}

type noopCollector struct{}

func (noopCollector) RecordDecision(string, string, int, string, string) {}

func (noopCollector) RecordNotification(string, string, string, string, string) {}
