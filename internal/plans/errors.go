package plans

import "errors"

// ErrUnknownTier indicates a subscription update named a tier that does not exist.
var ErrUnknownTier = errors.New("unknown subscription tier")
