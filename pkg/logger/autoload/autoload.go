// Package autoload initializes the global logger from environment on import.
package autoload

import (
	configx "github.com/albayt/ordering-agent/pkg/config"
	logx "github.com/albayt/ordering-agent/pkg/logger"
)

func init() {
	logx.Init(*configx.MustNew[logx.Config]("logger"))
}
