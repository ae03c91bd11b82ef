package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/parleyhq/parley/agent"
	"github.com/parleyhq/parley/analytics"
	"github.com/parleyhq/parley/config"
	"github.com/parleyhq/parley/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type cfg struct {
	config.Config
}
type cli struct {
	cfg cfg
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("config-file", "", "Path to config file.")
	cmd.Flags().String("redis-addr", "localhost:6379", "comma separated list of redis host:port")
	cmd.Flags().String("namespace", "parley", "namespace used in storage")
	cmd.Flags().Int("http-port", 8080, "http port for rest endpoints")
	cmd.Flags().String("storage-impl", "redis", "implementation of underline storage")
	cmd.Flags().Int("sweep-interval", 120, "timeout sweep interval in seconds")
	cmd.Flags().Int("max-rounds", 10, "default round ceiling per flow")
	cmd.Flags().Int("flow-timeout", 60, "default flow timeout in minutes")
	cmd.Flags().Int("wait-deadline", 30, "deadline for an awaited reply in minutes")
	cmd.Flags().String("policy-script", "", "path to the decision policy script")
	cmd.Flags().String("audit-log", "", "path of the flow audit log file")
	cmd.Flags().Bool("debug", false, "enable debug logging")
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	var err error

	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	viper.SetConfigFile(configFile)

	if err = viper.ReadInConfig(); err != nil {
		// it's ok if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configFile != "" {
			return err
		}
	}

	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.SweepIntervalSeconds = viper.GetInt("sweep-interval")
	c.cfg.DefaultMaxRounds = viper.GetInt("max-rounds")
	c.cfg.DefaultTimeoutMinutes = viper.GetInt("flow-timeout")
	c.cfg.WaitDeadlineMinutes = viper.GetInt("wait-deadline")
	c.cfg.PolicyScriptFile = viper.GetString("policy-script")
	c.cfg.Debug = viper.GetBool("debug")
	if auditLog := viper.GetString("audit-log"); auditLog != "" {
		c.cfg.AnalyticsConfig = analytics.DataCollectorConfig{
			FileName:      auditLog,
			CollectorType: analytics.LOG_FILE_DATA_COLLECTOR,
		}
	}
	return nil
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	logger.InitLogger(c.cfg.Debug)
	agent, err := agent.New(c.cfg.Config)
	if err != nil {
		panic(err)
	}
	err = agent.Start()
	if err != nil {
		panic(err)
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	return agent.Shutdown()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "parley",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
