package aggregate

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fedcompute/aggcore/status"
)

// Factory instantiates an aggregator from its intrinsic description.
type Factory interface {
	Create(intrinsic *Intrinsic) (TensorAggregator, error)
}

var registryMutex sync.RWMutex
var registry = map[string]Factory{}

// RegisterFactory adds a factory under the given URI. Meant to be
// called from init functions; registering the same URI twice is a
// programming error.
func RegisterFactory(uri string, factory Factory) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	if _, exists := registry[uri]; exists {
		logrus.Panicf("Aggregator factory for %s already registered", uri)
	}
	registry[uri] = factory
}

// GetFactory resolves a factory by intrinsic URI. Lookups do not
// lock: the table is only written by RegisterFactory from init
// functions, which finish before any concurrent lookup.
func GetFactory(uri string) (Factory, error) {
	factory, ok := registry[uri]
	if !ok {
		return nil, status.Errorf(status.NotFound, "Unknown aggregator uri %s", uri)
	}
	return factory, nil
}

// CreateAggregator resolves the intrinsic's URI and instantiates the
// aggregator through the registered factory.
func CreateAggregator(intrinsic *Intrinsic) (TensorAggregator, error) {
	factory, err := GetFactory(intrinsic.URI)
	if err != nil {
		return nil, err
	}
	return factory.Create(intrinsic)
}
