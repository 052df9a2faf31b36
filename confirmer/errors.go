package confirmer

import "errors"

// ErrNoBroker is returned by Confirm when the confirmer was created without a message broker.
var ErrNoBroker = errors.New("no message broker")
