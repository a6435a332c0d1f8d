package server

import (
	"github.com/edaccess/coursecheck/internal/app"
	"github.com/edaccess/coursecheck/internal/logging"
)

type Config struct {
	// AppConfig carries the shared runtime configuration. Nil means
	// app.DefaultConfig().
	AppConfig *app.Config

	// Logger defaults to a stdout JSON logger when nil.
	Logger logging.Logger
}
