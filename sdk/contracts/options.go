package contracts

// Default sizes of the sysex capture pool.
const (
	DefaultSysexBufferCount = 4
	DefaultSysexBufferSize  = 1024
)

// DefaultClientName is used when no client name is configured.
const DefaultClientName = "GO MIDI Client"

// PortCallback receives a port identity from the observer.
type PortCallback func(PortIdentity)

// ObserverConfig configures which ports an observer tracks and whom it notifies.
type ObserverConfig struct {
	InputAdded    PortCallback
	InputRemoved  PortCallback
	OutputAdded   PortCallback
	OutputRemoved PortCallback

	TrackHardware bool // Observe hardware ports.
	TrackVirtual  bool // Observe virtual ports if the backend exposes them.
}

// HasCallbacks reports whether any notification callback is installed.
func (c ObserverConfig) HasCallbacks() bool {
	return c.InputAdded != nil || c.InputRemoved != nil || c.OutputAdded != nil || c.OutputRemoved != nil
}

// ClientOptions defines the configuration options for MIDI ports and observers.
type ClientOptions struct {
	Logger            Logger         // Logger for logging events and errors.
	LogLevel          LogLevel       // Level of logging to use.
	LogFilePath       string         // File path for logging if file logging is enabled.
	ClientName        string         // Name of the native client.
	Platform          Platform       // Backend; selected per OS when nil.
	IgnoreFlags       *IgnoreFlags   // Message families dropped by inputs.
	OnError           ErrorCallback  // Fatal error channel.
	OnWarning         ErrorCallback  // Advisory channel.
	SysexBufferCount  int            // Number of chunked sysex capture buffers.
	SysexBufferSize   int            // Capacity of each capture buffer.
	EventListCapacity int            // Byte capacity of one UMP event list.
	Observer          ObserverConfig // Observer tracking and callbacks.
}

// Option is a function that modifies ClientOptions.
type Option func(*ClientOptions)

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(opts *ClientOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level.
func WithLogLevel(level LogLevel) Option {
	return func(opts *ClientOptions) {
		opts.LogLevel = level
	}
}

// WithLogFile directs logs to a file.
func WithLogFile(path string) Option {
	return func(opts *ClientOptions) {
		opts.LogFilePath = path
	}
}

// WithClientName sets the native client name.
func WithClientName(name string) Option {
	return func(opts *ClientOptions) {
		opts.ClientName = name
	}
}

// WithPlatform injects the backend instead of selecting one for the current OS.
func WithPlatform(p Platform) Option {
	return func(opts *ClientOptions) {
		opts.Platform = p
	}
}

// WithIgnoreFlags sets which message families inputs drop.
func WithIgnoreFlags(flags IgnoreFlags) Option {
	return func(opts *ClientOptions) {
		opts.IgnoreFlags = &flags
	}
}

// WithErrorCallback routes fatal errors to cb instead of the logger.
func WithErrorCallback(cb ErrorCallback) Option {
	return func(opts *ClientOptions) {
		opts.OnError = cb
	}
}

// WithWarningCallback routes warnings to cb instead of the logger.
func WithWarningCallback(cb ErrorCallback) Option {
	return func(opts *ClientOptions) {
		opts.OnWarning = cb
	}
}

// WithSysexBuffers sizes the chunked sysex capture pool.
func WithSysexBuffers(count, size int) Option {
	return func(opts *ClientOptions) {
		opts.SysexBufferCount = count
		opts.SysexBufferSize = size
	}
}

// WithEventListCapacity bounds the byte size of one UMP event list.
func WithEventListCapacity(capacity int) Option {
	return func(opts *ClientOptions) {
		opts.EventListCapacity = capacity
	}
}

// WithObserverConfig sets observer tracking flags and callbacks.
func WithObserverConfig(cfg ObserverConfig) Option {
	return func(opts *ClientOptions) {
		opts.Observer = cfg
	}
}
