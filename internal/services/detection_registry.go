package services

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/quantzone/zonekit/internal/models"
)

// DetectionStrategy turns a prepared series plus a detection config into an
// ordered list of zones.
type DetectionStrategy interface {
	Name() string
	Detect(frame *models.Frame, cfg models.DetectionConfig) ([]*models.Zone, error)
}

// DetectionFactory constructs a detection strategy instance.
type DetectionFactory func(logger *logrus.Logger) DetectionStrategy

var (
	detectionMu       sync.RWMutex
	detectionRegistry = make(map[string]DetectionFactory)
)

// RegisterDetection associates a strategy name with a factory. Third parties
// register new strategies at startup without touching existing code.
func RegisterDetection(name string, factory DetectionFactory) {
	detectionMu.Lock()
	defer detectionMu.Unlock()
	detectionRegistry[name] = factory
}

// NewDetectionStrategy constructs the named strategy, or fails with an
// UnknownStrategyError listing the available names.
func NewDetectionStrategy(name string, logger *logrus.Logger) (DetectionStrategy, error) {
	detectionMu.RLock()
	factory, ok := detectionRegistry[name]
	detectionMu.RUnlock()
	if !ok {
		return nil, &models.UnknownStrategyError{Name: name, Available: DetectionStrategyNames()}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return factory(logger), nil
}

// DetectionStrategyNames returns the registered strategy names, sorted.
func DetectionStrategyNames() []string {
	detectionMu.RLock()
	defer detectionMu.RUnlock()
	names := make([]string, 0, len(detectionRegistry))
	for name := range detectionRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
