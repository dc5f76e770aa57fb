package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "PDFCP_"

type Application struct {
	Host      string    `koanf:"host"`
	Listen    string    `koanf:"listen"`
	Database  Database  `koanf:"db"`
	Hosted    Hosted    `koanf:"hosted"`
	Dashboard Dashboard `koanf:"dashboard"`
	Demo      Demo      `koanf:"demo"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

// Hosted points at the REST endpoint of the hosted database holding executed actions and alerts.
type Hosted struct {
	Url     string        `koanf:"url"`
	ApiKey  string        `koanf:"apikey"`
	Timeout time.Duration `koanf:"timeout"`
	Retries uint64        `koanf:"retries"`
}

type Dashboard struct {
	SnapshotTTL             time.Duration `koanf:"snapshotttl"`
	ComponentBudgetFallback bool          `koanf:"componentbudgetfallback"`
}

// Demo keeps the disable flag as the raw string. Only the exact value "false" enables the demo
// ADMIN and DG accounts, so YAML files must quote it.
type Demo struct {
	DisableAdminDg string `koanf:"disableadmindg"`
}

func defaults() Application {
	return Application{
		Host:   "http://localhost:3000",
		Listen: ":8181",
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "pdfcp",
			Pass:   "",
			Name:   "pdfcp",
			Schema: "pdfcp",
		},
		Hosted: Hosted{
			Timeout: 10 * time.Second,
			Retries: 3,
		},
		Dashboard: Dashboard{
			SnapshotTTL:             30 * time.Second,
			ComponentBudgetFallback: true,
		},
	}
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, envPrefix)), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	return app, nil
}
