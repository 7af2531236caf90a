package device

// Kind identifies the class of compute device a pipeline runs on
type Kind string

const (
	KindCUDA Kind = "cuda"
	KindCPU  Kind = "cpu"
)

// Context identifies the compute device selected for one pipeline invocation.
// It is chosen once per run and shared read-only by all stages.
type Context struct {
	Kind          Kind
	Name          string
	DeviceCount   int
	DriverVersion string
}

// IsAccelerated reports whether the context targets an accelerator
func (c Context) IsAccelerated() bool {
	return c.Kind == KindCUDA
}

// String returns the device identifier passed to model runners
func (c Context) String() string {
	return string(c.Kind)
}

// CPU returns the general-purpose fallback context
func CPU() Context {
	return Context{Kind: KindCPU, Name: "cpu"}
}
