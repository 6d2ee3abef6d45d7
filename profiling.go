package silo

import "github.com/pkg/profile"

// startProfile begins a CPU or memory profiling session for one
// Pipeline.Execute call when RegistryConfig.Profile names one, mirroring
// the github.com/pkg/profile invocation shape lazyecs's own profiling
// harness sketches (profile/query/main.go: "profile.Start(profile.MemProfileAllocs,
// profile.ProfilePath("."), profile.NoShutdownHook)") but left commented out
// in favor of raw runtime/pprof calls. silo wires the library up for real
// instead of leaving it inert.
func startProfile(kind string) interface{ Stop() } {
	switch kind {
	case "cpu":
		return profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	case "mem":
		return profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook)
	default:
		return nil
	}
}

// ExecuteProfiled runs the pipeline once, wrapped in a profiling session if
// RegistryConfig.Profile is non-empty. Each call starts and stops its own
// session, so hosts that tick every frame should call this only for the
// run they intend to capture, not every tick.
func (r *Registry) ExecuteProfiled() error {
	if r.cfg.Profile == "" {
		return r.pipeline.Execute(r)
	}
	p := startProfile(r.cfg.Profile)
	defer func() {
		if p != nil {
			p.Stop()
		}
	}()
	return r.pipeline.Execute(r)
}
