package execution

import (
	"code.meridianprotocol.io/meridian/config/encoding"
	"code.meridianprotocol.io/meridian/fee"
	"code.meridianprotocol.io/meridian/ledger"
	"code.meridianprotocol.io/meridian/logging"
	"code.meridianprotocol.io/meridian/matching"
	"code.meridianprotocol.io/meridian/positions"
)

const (
	// namedLogger is the identifier for package and should ideally match the package name
	// this is simply emitted as a hierarchical label e.g. 'execution'.
	namedLogger = "execution"
)

// Config is the configuration of the execution package, aggregating the
// configuration of every engine it drives.
type Config struct {
	Level encoding.LogLevel `long:"log-level"`

	Matching  matching.Config  `group:"Matching"  namespace:"matching"`
	Positions positions.Config `group:"Positions" namespace:"positions"`
	Fee       fee.Config       `group:"Fee"       namespace:"fee"`
	Ledger    ledger.Config    `group:"Ledger"    namespace:"ledger"`
}

// NewDefaultConfig creates an instance of the package specific configuration,
// given a pointer to a logger instance to be used for logging within the
// package.
func NewDefaultConfig() Config {
	return Config{
		Level:     encoding.LogLevel{Level: logging.InfoLevel},
		Matching:  matching.NewDefaultConfig(),
		Positions: positions.NewDefaultConfig(),
		Fee:       fee.NewDefaultConfig(),
		Ledger:    ledger.NewDefaultConfig(),
	}
}
