package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

func NewConfig(p string) *viper.Viper {
	envConf := os.Getenv("APP_CONF")
	if envConf == "" {
		envConf = p
	}
	fmt.Println("load conf file:", envConf)
	return getConfig(envConf)
}

func getConfig(path string) *viper.Viper {
	conf := viper.New()
	conf.SetConfigFile(path)
	setDefaults(conf)
	err := conf.ReadInConfig()
	if err != nil {
		panic(err)
	}
	return conf
}

// setDefaults 引擎相关的默认值，配置文件中未出现的 key 使用这里的值
func setDefaults(conf *viper.Viper) {
	conf.SetDefault("env", "local")
	conf.SetDefault("http.host", "0.0.0.0")
	conf.SetDefault("http.port", 8000)
	conf.SetDefault("collective.timeout", 30*time.Second)
	conf.SetDefault("collective.insecure", false)
	conf.SetDefault("engine.poll_interval", 10*time.Second)
	conf.SetDefault("engine.skip_unchanged", true)
	conf.SetDefault("engine.seed_types", []string{})
	conf.SetDefault("relay.redis.enabled", false)
	conf.SetDefault("relay.redis.channel", "collective:changes")
	conf.SetDefault("relay.redis.buffer", 256)
	conf.SetDefault("relay.websocket.enabled", true)
	conf.SetDefault("relay.websocket.buffer", 64)
	conf.SetDefault("journal.enabled", false)
	conf.SetDefault("journal.auto_migrate", true)
	conf.SetDefault("journal.buffer", 1024)
	conf.SetDefault("journal.batch_size", 100)
	conf.SetDefault("journal.flush_interval", time.Second)
	conf.SetDefault("journal.retention", 7*24*time.Hour)
	conf.SetDefault("log.log_level", "info")
	conf.SetDefault("log.encoding", "console")
}
