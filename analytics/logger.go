package analytics

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogFileDataCollector struct {
	fileName string
	logger   *zap.Logger
}

func NewLogFileDataCollector(fileName string) (*LogFileDataCollector, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.StacktraceKey = "" // to hide stacktrace info
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)
	logFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	writer := zapcore.AddSync(logFile)
	core := zapcore.NewTee(zapcore.NewCore(fileEncoder, writer, zapcore.InfoLevel))
	logger := zap.New(core)
	return &LogFileDataCollector{
		fileName: fileName,
		logger:   logger,
	}, nil
}

func (lc *LogFileDataCollector) RecordDecision(agentId string, flowId string, round int, decisionType string, reasoning string) {
	lc.logger.Info("decision", zap.String("agentId", agentId), zap.String("flowId", flowId), zap.Int("round", round), zap.String("type", decisionType), zap.String("reasoning", reasoning))
}

func (lc *LogFileDataCollector) RecordNotification(agentId string, flowId string, kind string, to string, failure string) {
	lc.logger.Info("notification", zap.String("agentId", agentId), zap.String("flowId", flowId), zap.String("kind", kind), zap.String("to", to), zap.String("failure", failure))
}
