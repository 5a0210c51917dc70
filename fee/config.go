package fee

import (
	"code.meridianprotocol.io/meridian/config/encoding"
	"code.meridianprotocol.io/meridian/logging"
)

const (
	// namedLogger is the identifier for package and should ideally match the package name
	// this is simply emitted as a hierarchical label e.g. 'execution.fee'.
	namedLogger = "fee"
)

// Config is the configuration of the fee package.
type Config struct {
	Level encoding.LogLevel `long:"log-level"`
}

// NewDefaultConfig creates an instance of the package specific configuration.
func NewDefaultConfig() Config {
	return Config{
		Level: encoding.LogLevel{Level: logging.InfoLevel},
	}
}
