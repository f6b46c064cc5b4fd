package constant

import (
	"tablestream/lib/properties"
)

var (
	//runtime property

	RuntimeLogLevelProperty    = properties.NewRequiredProperty[string]("log-level", "log-level, debug info warn or error")
	RuntimeLogEncoderProperty  = properties.NewProperty[string]("log-encoder", "log output encoder, console or json", "console")
	RuntimeStatusDirProperty   = properties.NewProperty[string]("status-dir", "directory of the watermark checkpoint store, empty disables snapshots", ".")
	RuntimeMetricsAddrProperty = properties.NewProperty[string]("metrics-addr", "listen address of the prometheus endpoint, empty disables it", "")

	//component property

	TypeProperty = properties.NewRequiredProperty[string]("type", "component type")

	SelectorProperty = properties.NewProperty[string]("select", "emit select", "replicating")
)
