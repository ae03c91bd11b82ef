package config

import "github.com/parleyhq/parley/analytics"

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_INMEM StorageType = "memory"

type Config struct {
	RedisConfig           RedisStorageConfig
	HttpPort              int
	StorageType           StorageType
	SweepIntervalSeconds  int
	DefaultMaxRounds      int
	DefaultTimeoutMinutes int
	WaitDeadlineMinutes   int
	PolicyScriptFile      string
	AnalyticsConfig       analytics.DataCollectorConfig
	Debug                 bool
}

type RedisStorageConfig struct {
	Addrs     []string
	Namespace string
}
