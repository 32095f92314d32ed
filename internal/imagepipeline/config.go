package imagepipeline

// Engine names a rasterizer profile in config. The pipeline has a single
// Go rasterizer and does not read this field, so both values produce the
// same PNG chart.
type Engine string

const (
	EngineMatplotlib Engine = "matplotlib"
	EnginePlotly     Engine = "plotly"
)

// Config configures one producer's image pipeline (prometheus_image /
// grafana_image in the YAML config).
type Config struct {
	Enabled         bool   `yaml:"enabled"`
	PrometheusURL   string `yaml:"prometheus_url"`
	Engine          Engine `yaml:"engine"`
	StepSeconds     int    `yaml:"step_seconds"`
	LookbackMinutes int    `yaml:"lookback_minutes"`
	MaxSeries       int    `yaml:"max_series"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	CanvasWidth     int    `yaml:"canvas_width"`
	CanvasHeight    int    `yaml:"canvas_height"`
}

func (c Config) withDefaults() Config {
	if c.StepSeconds <= 0 {
		c.StepSeconds = 60
	}
	if c.LookbackMinutes <= 0 {
		c.LookbackMinutes = 60
	}
	if c.MaxSeries <= 0 {
		c.MaxSeries = 5
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
	if c.CanvasWidth <= 0 {
		c.CanvasWidth = 640
	}
	if c.CanvasHeight <= 0 {
		c.CanvasHeight = 360
	}
	return c
}
