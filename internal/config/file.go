package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/law-makers/pricecrawl/pkg/models"
	"gopkg.in/yaml.v3"
)

// runFile is the YAML run configuration. Pointer fields distinguish an
// explicit zero from an absent key.
type runFile struct {
	Retailer      string              `yaml:"retailer"`
	MaxPages      *int                `yaml:"maxPages"`
	DelayMs       *int                `yaml:"delayMs"`
	MaxConcurrent *int                `yaml:"maxConcurrent"`
	NavTimeoutMs  *int                `yaml:"navTimeoutMs"`
	Categories    []string            `yaml:"categories"`
	SelectorMap   *models.SelectorMap `yaml:"selectorMap"`
	ProductMarker string              `yaml:"productMarker"`
	DenyList      []string            `yaml:"denyList"`
	LinkFilter    string              `yaml:"linkFilter"`
	UserAgent     string              `yaml:"userAgent"`
	Headers       []string            `yaml:"headers"`
	Engine        string              `yaml:"engine"`
	Headless      *bool               `yaml:"headless"`
	Timezone      string              `yaml:"timezone"`
}

func readRunFile(path string) (*runFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rf runFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rf); err != nil {
		if errors.Is(err, io.EOF) {
			return &rf, nil
		}
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &rf, nil
}

func (rf *runFile) apply(cfg *Config) {
	if rf.Retailer != "" {
		cfg.Retailer = rf.Retailer
	}
	if rf.MaxPages != nil {
		cfg.MaxPages = *rf.MaxPages
	}
	if rf.DelayMs != nil {
		cfg.Delay = time.Duration(*rf.DelayMs) * time.Millisecond
	}
	if rf.MaxConcurrent != nil {
		cfg.MaxConcurrent = *rf.MaxConcurrent
	}
	if rf.NavTimeoutMs != nil {
		cfg.NavTimeout = time.Duration(*rf.NavTimeoutMs) * time.Millisecond
	}
	if len(rf.Categories) > 0 {
		cfg.Categories = rf.Categories
	}
	if rf.SelectorMap != nil {
		cfg.Selectors = *rf.SelectorMap
	}
	if rf.ProductMarker != "" {
		cfg.ProductMarker = rf.ProductMarker
	}
	if len(rf.DenyList) > 0 {
		cfg.DenyList = rf.DenyList
	}
	if rf.LinkFilter != "" {
		cfg.LinkFilter = rf.LinkFilter
	}
	if rf.UserAgent != "" {
		cfg.UserAgent = rf.UserAgent
	}
	if len(rf.Headers) > 0 {
		cfg.Headers = rf.Headers
	}
	if rf.Engine != "" {
		cfg.Engine = strings.ToLower(rf.Engine)
	}
	if rf.Headless != nil {
		cfg.Headless = *rf.Headless
	}
	if rf.Timezone != "" {
		cfg.Timezone = rf.Timezone
	}
}

// loadDotEnv exports the variables in path without overriding the ones
// already set in the environment.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}
