package config

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// SetupLogging configures the standard logrus logger with the level and format ("text" or "json") given.
func SetupLogging(level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	log.SetLevel(lvl)

	switch format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("%w: log format %q", ErrInvalid, format)
	}

	return nil
}
