// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texture

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	storeLabel     = "store"
	errorKindLabel = "error_kind"
)

var (
	loadsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pano_texture_loads_started_total",
		Help: "The number of tile loads submitted.",
	}, []string{
		storeLabel,
	})

	loadsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pano_texture_loads_completed_total",
		Help: "The number of tile loads that produced a texture.",
	}, []string{
		storeLabel,
	})

	loadsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pano_texture_loads_failed_total",
		Help: "The number of tile loads that failed.",
	}, []string{
		storeLabel,
		errorKindLabel,
	})

	loadsCanceled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pano_texture_loads_canceled_total",
		Help: "The number of tile loads canceled before completion.",
	}, []string{
		storeLabel,
	})

	evictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pano_texture_evictions_total",
		Help: "The number of entries evicted from the texture cache.",
	}, []string{
		storeLabel,
	})

	residentTextures = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pano_texture_resident",
		Help: "The number of textures held by the store.",
	}, []string{
		storeLabel,
	})

	residentBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pano_texture_resident_bytes",
		Help: "The bytes held by the store's textures.",
	}, []string{
		storeLabel,
	})
)

// storeMetrics records metrics for one store. The zero value records
// nothing.
type storeMetrics struct {
	name string
}

func (m storeMetrics) labels() prometheus.Labels {
	return prometheus.Labels{storeLabel: m.name}
}

func (m storeMetrics) instrumentLoadStarted() {
	if m.name != "" {
		loadsStarted.With(m.labels()).Inc()
	}
}

func (m storeMetrics) instrumentLoadCompleted() {
	if m.name != "" {
		loadsCompleted.With(m.labels()).Inc()
	}
}

func (m storeMetrics) instrumentLoadFailed(err error) {
	if m.name == "" {
		return
	}
	loadsFailed.
		With(prometheus.Labels{
			storeLabel:     m.name,
			errorKindLabel: errorKind(err),
		}).
		Inc()
}

func (m storeMetrics) instrumentLoadCanceled() {
	if m.name != "" {
		loadsCanceled.With(m.labels()).Inc()
	}
}

func (m storeMetrics) instrumentEvictions(n int) {
	if m.name != "" && n > 0 {
		evictions.With(m.labels()).Add(float64(n))
	}
}

func (m storeMetrics) instrumentResident(textures int, bytes int64) {
	if m.name == "" {
		return
	}
	residentTextures.With(m.labels()).Set(float64(textures))
	residentBytes.With(m.labels()).Set(float64(bytes))
}
