package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// FileConfig mirrors the YAML config file. Pointer fields distinguish "absent" from "empty".
type FileConfig struct {
	PostgreSQL struct {
		Host           *string `yaml:"host"`
		Port           string  `yaml:"port"`
		User           string  `yaml:"user"`
		Password       string  `yaml:"password"`
		DBName         string  `yaml:"dbname"`
		Service        string  `yaml:"service"`
		ServiceFile    string  `yaml:"servicefile"`
		SSLMode        string  `yaml:"sslmode"`
		ConnectTimeout string  `yaml:"connect_timeout"`
	} `yaml:"postgresql"`

	Report struct {
		Address string `yaml:"address"`
		Key     string `yaml:"key"`
		Output  string `yaml:"output"`
		Per     string `yaml:"per"`
	} `yaml:"report"`

	State struct {
		File string `yaml:"file"`
		DSN  string `yaml:"dsn"`
	} `yaml:"state"`
}

// LoadFile reads a YAML config file. An empty path yields an empty config.
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}
