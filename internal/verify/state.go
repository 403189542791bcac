package verify

import (
	"errors"
	"fmt"

	"github.com/edvin/sitepublish/internal/model"
)

// ErrAlreadyActive is returned by Begin for a domain that is already active.
// Callers treat it as a successful no-op.
var ErrAlreadyActive = errors.New("domain is already active")

// TransitionError reports a status change the domain lifecycle does not allow.
type TransitionError struct {
	From, To string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("domain cannot move from %s to %s", e.From, e.To)
}

var domainTransitions = map[string][]string{
	model.DomainPending:   {model.DomainVerifying},
	model.DomainVerifying: {model.DomainActive, model.DomainFailed},
	model.DomainFailed:    {model.DomainVerifying},
}

var sslTransitions = map[string][]string{
	model.SSLNone:         {model.SSLProvisioning},
	model.SSLProvisioning: {model.SSLActive, model.SSLFailed},
	model.SSLActive:       {model.SSLProvisioning},
	model.SSLFailed:       {model.SSLProvisioning},
}

// CanTransition reports whether a domain may move from one status to another.
func CanTransition(from, to string) bool {
	return allowed(domainTransitions, from, to)
}

// CanTransitionSSL reports whether the certificate status may move from one
// value to another. Active certificates go back to provisioning on renewal.
func CanTransitionSSL(from, to string) bool {
	return allowed(sslTransitions, from, to)
}

func allowed(table map[string][]string, from, to string) bool {
	for _, s := range table[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Begin checks that a verification may start for a domain in status.
// Active domains yield ErrAlreadyActive; a verification already in flight
// yields a *TransitionError.
func Begin(status string) error {
	if status == model.DomainActive {
		return ErrAlreadyActive
	}
	if !CanTransition(status, model.DomainVerifying) {
		return &TransitionError{From: status, To: model.DomainVerifying}
	}
	return nil
}

// Outcome returns the domain status and SSL status that follow a check.
// A fully matched check activates the domain and starts certificate
// provisioning; anything else fails it and leaves SSL untouched.
func Outcome(res Result, sslStatus string) (status, nextSSL string) {
	if res.Matched() {
		return model.DomainActive, model.SSLProvisioning
	}
	return model.DomainFailed, sslStatus
}
