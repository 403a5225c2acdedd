// Package config loads the single YAML configuration file the core
// honors: the LRU section (recency index capacity/eviction fraction) and
// the LRU_db section relevant to the composite store (key encoding, value
// serialization, Redis address/DB index). The Application and main
// sections belong to external collaborators (the particle-simulation
// driver, process supervision) and are decoded into passthrough maps
// rather than typed fields; any other section (DataBase included) is not
// decoded.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/edirooss/lrustore/internal/store"
)

// LRU is the recency-index section the core parses.
type LRU struct {
	MaxLen       int     `yaml:"maxlen"`
	SyncFraction float64 `yaml:"sync_fraction"`
}

// LRUDatabase is the CS-relevant LRU_db section: the Redis
// connection the backing store dials and the codec selectors.
type LRUDatabase struct {
	Addr          string `yaml:"addr"`
	DB            int    `yaml:"db"`
	KeyEncoding   string `yaml:"keyencoding"`
	Serialization string `yaml:"serialization"`
}

// File is the top-level shape of the YAML configuration file. Application
// and main are opaque to the core: they configure the workload driver and
// process supervision, which are external collaborators per spec.md §1/§6.
type File struct {
	Application map[string]interface{} `yaml:"Application"`
	LRU         LRU                    `yaml:"LRU"`
	LRUDatabase LRUDatabase            `yaml:"LRU_db"`
	Main        map[string]interface{} `yaml:"main"`
}

// Load reads and parses path into a File.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return &f, nil
}

// StoreConfig projects the LRU and LRU_db sections into the typed
// configuration store.Connect expects, applying store.Config's own
// zero-value defaults for anything the file omits.
func (f *File) StoreConfig() store.Config {
	return store.Config{
		MaxLen:        f.LRU.MaxLen,
		SyncFraction:  f.LRU.SyncFraction,
		KeyEncoding:   f.LRUDatabase.KeyEncoding,
		Serialization: f.LRUDatabase.Serialization,
	}
}
