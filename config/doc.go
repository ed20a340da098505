// Package config loads bridge settings from the environment.
//
//	MODBUS_BRIDGE_LOG_LEVEL        debug|info|warn|error (default info)
//	MODBUS_BRIDGE_LOG_FORMAT       json|console (default json)
//	MODBUS_BRIDGE_WORKERS          worker goroutines per engine, 0 = one per CPU
//	MODBUS_BRIDGE_RETRY_MIN        first reconnect delay (default 1s)
//	MODBUS_BRIDGE_RETRY_MAX        reconnect delay ceiling (default 10s)
//	MODBUS_BRIDGE_CONNECT_TIMEOUT  bound on each connection attempt (default 5s)
package config
