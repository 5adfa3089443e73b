package repository

import (
	"testing"
	"time"

	"collectivewatch/pkg/log"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewCollectiveClient(t *testing.T) {
	conf := viper.New()
	conf.Set("collective.api_url", "https://collective.example:9443")
	conf.Set("collective.timeout", 5*time.Second)
	c, err := NewCollectiveClient(conf)
	require.NoError(t, err)
	assert.NotNil(t, c)

	conf.Set("collective.api_url", "")
	_, err = NewCollectiveClient(conf)
	assert.Error(t, err)
}

func TestNewRedis_Disabled(t *testing.T) {
	conf := viper.New()
	rdb, cleanup, err := NewRedis(conf, log.NewWithZap(zaptest.NewLogger(t)))
	require.NoError(t, err)
	assert.Nil(t, rdb)
	cleanup()
}
