package service

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog/log"
)

// Fault classes reported by ClassifyFault
const (
	// FaultSession marks failures raised by the wallet session layer
	FaultSession = "session"
	// FaultOther marks everything else
	FaultOther = "other"
)

// ClassifyFault reports whether err comes from the wallet session layer
func ClassifyFault(err error) string {
	if err == nil {
		return FaultOther
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"proposal expired", "proposal", "walletconnect", "session"} {
		if strings.Contains(msg, marker) {
			return FaultSession
		}
	}
	return FaultOther
}

// Guard runs fn and logs any panic instead of letting it crash the process
func Guard(scope string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%v", r)
			log.Error().
				Err(err).
				Str("scope", scope).
				Str("fault", ClassifyFault(err)).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from panic")
		}
	}()
	fn()
}
