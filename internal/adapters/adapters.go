// Package adapters wires a configuration to a concrete store backend.
package adapters

import (
	"fmt"

	"github.com/epistimio/kleio/internal/adapters/file"
	"github.com/epistimio/kleio/internal/adapters/memory"
	"github.com/epistimio/kleio/internal/adapters/redis"
	"github.com/epistimio/kleio/internal/config"
	"github.com/epistimio/kleio/pkg/ports"
)

// Open builds the store and locker selected by the configuration. Debug
// mode forces the in-memory backend regardless of the database type.
func Open(cfg config.Config) (ports.Store, ports.DistributedLocker, error) {
	dbType := cfg.Database.Type
	if cfg.Debug {
		dbType = "memory"
	}

	switch dbType {
	case "memory":
		return memory.NewStore(), memory.NewLocker(), nil

	case "file", "":
		base := cfg.Database.Name
		if base == "" {
			base = ".kleio"
		}
		return file.New(base), file.NewLocker(base), nil

	case "redis":
		store := redis.New(cfg.Database.Address, cfg.Database.Password, cfg.Database.DB)
		locker := redis.NewLocker(store.Client(), store.Prefix())
		return store, locker, nil

	default:
		return nil, nil, fmt.Errorf("unknown database type %q", cfg.Database.Type)
	}
}
