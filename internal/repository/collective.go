package repository

import (
	"collectivewatch/pkg/collective"

	"github.com/spf13/viper"
)

func NewCollectiveClient(conf *viper.Viper) (*collective.Client, error) {
	return collective.NewClient(
		conf.GetString("collective.api_url"),
		conf.GetString("collective.user"),
		conf.GetString("collective.password"),
		collective.WithTimeout(conf.GetDuration("collective.timeout")),
		collective.WithInsecure(conf.GetBool("collective.insecure")),
	)
}
