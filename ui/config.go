package ui

// Config contains TUI-specific configuration.
type Config struct {
	ShowAllFiles     bool
	ShowLineNumbers  bool
	Gopath           string `env:"GOPATH"`
	HomeDir          string `env:"HOME"`
	GlamourMaxWidth  uint
	GlamourStyle     string `env:"GLAMOUR_STYLE"`
	EnableMouse      bool
	PreserveNewLines bool

	// Working directory or file path
	Path string

	// Where the transport controls are drawn
	Transport TransportMode `env:"READALOUD_TRANSPORT" envDefault:"auto"`

	// For debugging the UI
	HighPerformancePager bool `env:"READALOUD_HIGH_PERFORMANCE_PAGER" envDefault:"true"`
	GlamourEnabled       bool `env:"READALOUD_ENABLE_GLAMOUR"         envDefault:"true"`
}
