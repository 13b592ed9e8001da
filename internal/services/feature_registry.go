package services

import (
	"fmt"
	"sort"
	"sync"

	"github.com/quantzone/zonekit/internal/models"
)

// FeatureStrategy computes one feature family for a single zone. It receives
// the zone's sub-series and the resolved signal column names; it must
// degrade to an empty map when a column is absent, never fail for that
// reason alone.
type FeatureStrategy interface {
	Name() string
	Extract(frame *models.Frame, primary, secondary string) map[string]float64
}

// FeatureFactory constructs a feature strategy instance.
type FeatureFactory func() FeatureStrategy

// The five analytical-strategy slots of the analyzer.
const (
	SlotShape      = "shape"
	SlotDivergence = "divergence"
	SlotVolatility = "volatility"
	SlotVolume     = "volume"
	SlotSwing      = "swing"
)

var featureSlots = []string{SlotShape, SlotDivergence, SlotVolatility, SlotVolume, SlotSwing}

var (
	featureMu       sync.RWMutex
	featureRegistry = make(map[string]map[string]FeatureFactory)
)

// RegisterFeature associates a named implementation with one of the five
// analytical-strategy slots, so third parties replace a slot with zero
// changes to existing files.
func RegisterFeature(slot, name string, factory FeatureFactory) error {
	if !validSlot(slot) {
		return fmt.Errorf("unknown feature slot %q, valid slots: %v", slot, featureSlots)
	}
	featureMu.Lock()
	defer featureMu.Unlock()
	if featureRegistry[slot] == nil {
		featureRegistry[slot] = make(map[string]FeatureFactory)
	}
	featureRegistry[slot][name] = factory
	return nil
}

// NewFeature constructs the named implementation registered for a slot.
func NewFeature(slot, name string) (FeatureStrategy, error) {
	featureMu.RLock()
	defer featureMu.RUnlock()
	factory, ok := featureRegistry[slot][name]
	if !ok {
		return nil, &models.UnknownStrategyError{Name: name, Available: featureNamesLocked(slot)}
	}
	return factory(), nil
}

// FeatureNames returns the implementations registered for a slot, sorted.
func FeatureNames(slot string) []string {
	featureMu.RLock()
	defer featureMu.RUnlock()
	return featureNamesLocked(slot)
}

func featureNamesLocked(slot string) []string {
	names := make([]string, 0, len(featureRegistry[slot]))
	for name := range featureRegistry[slot] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func validSlot(slot string) bool {
	for _, s := range featureSlots {
		if s == slot {
			return true
		}
	}
	return false
}
