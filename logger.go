package ubinder

import "github.com/fxsml/ubinder/endpoint"

// Logger defines an interface for logging at different severity levels.
// *slog.Logger satisfies it.
type Logger = endpoint.Logger
