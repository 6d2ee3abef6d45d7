package silo

// factory groups the package's non-generic construction helpers under one
// exported value. DefineComponent and RegisterResource stay free generic
// functions, since Go has no generic methods, so this struct only carries
// the constructors that don't need one.
type factory struct{}

// Factory is the package-level factory instance.
var Factory factory

// NewRegistry constructs a Registry with the given configuration.
func (f factory) NewRegistry(cfg RegistryConfig) *Registry {
	return NewRegistry(cfg)
}

// NewPlugin builds a Plugin value from its three parts.
func (f factory) NewPlugin(name string, init func(*Registry) error, teardown func(*Registry)) Plugin {
	return Plugin{Name: name, Init: init, Teardown: teardown}
}
