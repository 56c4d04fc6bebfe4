package handler

import (
	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/user"
	"chatrelay/internal/configs"
	"chatrelay/internal/pkg/metrics"
	"chatrelay/internal/pkg/pow"
)

// AppDeps carries the long-lived services the handlers need.
type AppDeps struct {
	Manager  *chat.Manager
	Registry *user.Registry
	Config   *configs.AppConfig
	PoW      *pow.Manager
	Metrics  *metrics.Metrics
}
