package xtap

import (
	"errors"
	"fmt"
	"sync"
)

// ExporterFactory constructs exporters from a config blob.
type ExporterFactory func(cfg map[string]any) (Exporter, error)

// CodecFactory constructs codecs via Factory pattern.
type CodecFactory func() Codec

var (
	exporterRegistryMu sync.RWMutex
	exporterRegistry   = map[string]ExporterFactory{}

	codecRegistryMu sync.RWMutex
	codecRegistry   = map[string]CodecFactory{
		"json": func() Codec { return JSONCodec{} },
	}
)

// RegisterExporter registers an export backend by name.
func RegisterExporter(name string, factory ExporterFactory) error {
	if name == "" {
		return errors.New("exporter name must not be empty")
	}
	if factory == nil {
		return errors.New("exporter factory must not be nil")
	}
	exporterRegistryMu.Lock()
	exporterRegistry[name] = factory
	exporterRegistryMu.Unlock()
	return nil
}

// NewExporter constructs an exporter by name with config.
func NewExporter(name string, cfg map[string]any) (Exporter, error) {
	exporterRegistryMu.RLock()
	f, ok := exporterRegistry[name]
	exporterRegistryMu.RUnlock()
	if !ok {
		return nil, ErrUnknownExporter{name: name}
	}
	return f(cfg)
}

// RegisterCodec registers a codec factory by name.
func RegisterCodec(name string, factory CodecFactory) error {
	if name == "" {
		return errors.New("codec name must not be empty")
	}
	if factory == nil {
		return errors.New("codec factory must not be nil")
	}
	codecRegistryMu.Lock()
	codecRegistry[name] = factory
	codecRegistryMu.Unlock()
	return nil
}

// NewCodec constructs a codec by name or returns an error.
func NewCodec(name string) (Codec, error) {
	codecRegistryMu.RLock()
	f, ok := codecRegistry[name]
	codecRegistryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("codec %q not registered", name)
	}
	return f(), nil
}
