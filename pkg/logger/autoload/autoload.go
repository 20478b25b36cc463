// Package autoload initializes the global logger from the LOG_* environment
// on import, so main only needs a blank import.
package autoload

import (
	"github.com/kelseyhightower/envconfig"

	logx "github.com/mechanigo/chatbot/pkg/logger"
)

func init() {
	conf := *logx.DefaultConfig
	if err := envconfig.Process("LOG", &conf); err != nil {
		conf = *logx.DefaultConfig
	}
	logx.Init(conf)
}
