package pipeline

// Handle is the process-wide pipeline binding created at startup.
type Handle struct {
	pipeline Pipeline
	model    string
	device   Device
	reason   error
}

// Bound returns a handle holding p.
func Bound(p Pipeline, model string, device Device) Handle {
	return Handle{pipeline: p, model: model, device: device}
}

// Unbound returns a handle with no pipeline. reason explains why.
func Unbound(reason error, device Device) Handle {
	return Handle{reason: reason, device: device}
}

// Pipeline returns the bound pipeline and true, or nil and false.
func (h Handle) Pipeline() (Pipeline, bool) {
	return h.pipeline, h.pipeline != nil
}

// Loaded reports whether a pipeline is bound.
func (h Handle) Loaded() bool { return h.pipeline != nil }

// Model is the identifier of the bound model, empty when unbound.
func (h Handle) Model() string { return h.model }

// Device is the compute device selected at startup.
func (h Handle) Device() Device { return h.device }

// Reason is why the handle is unbound, nil when bound.
func (h Handle) Reason() error { return h.reason }
