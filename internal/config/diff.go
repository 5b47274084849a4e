package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; anything else
// (audio source, transcriber model) requires a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// VADChanged covers the detector thresholds and the gate tuning knobs.
	VADChanged bool

	// DenoiseChanged covers the enabled flag and provider selection.
	DenoiseChanged bool

	// CorrectorChanged covers the enabled flag, temperature, and the
	// provider entries.
	CorrectorChanged bool

	// ContextChanged covers the static keyword list and language.
	ContextChanged bool

	// RestartRequired is set when a non-reloadable section differs.
	RestartRequired bool
}

// Any reports whether the diff contains any change at all.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.VADChanged || d.DenoiseChanged ||
		d.CorrectorChanged || d.ContextChanged || d.RestartRequired
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.VAD != new.VAD {
		d.VADChanged = true
	}
	if old.Denoise != new.Denoise {
		d.DenoiseChanged = true
	}
	if correctorChanged(old.Corrector, new.Corrector) {
		d.CorrectorChanged = true
	}
	if old.Context.Language != new.Context.Language ||
		!slices.Equal(old.Context.Keywords, new.Context.Keywords) {
		d.ContextChanged = true
	}

	if old.Audio != new.Audio || old.Transcriber != new.Transcriber ||
		old.History != new.History || old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = true
	}

	return d
}

// correctorChanged compares the corrector sections field by field: the
// provider entries contain maps, so the structs are not comparable.
func correctorChanged(old, new CorrectorConfig) bool {
	if old.Enabled != new.Enabled || old.Temperature != new.Temperature || old.TimeoutMs != new.TimeoutMs {
		return true
	}
	if entryChanged(old.Primary, new.Primary) {
		return true
	}
	if len(old.Fallbacks) != len(new.Fallbacks) {
		return true
	}
	for i := range old.Fallbacks {
		if entryChanged(old.Fallbacks[i], new.Fallbacks[i]) {
			return true
		}
	}
	return false
}

// entryChanged compares entries without deep-diffing the Options map; an
// option count change is enough to flag a reload.
func entryChanged(old, new ProviderEntry) bool {
	return old.Name != new.Name || old.APIKey != new.APIKey ||
		old.BaseURL != new.BaseURL || old.Model != new.Model ||
		len(old.Options) != len(new.Options)
}
