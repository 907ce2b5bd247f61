package chain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrReceiptNotFound = errors.New("receipt not found")
	ErrReceiptTimeout  = errors.New("timed out waiting for receipt")
	ErrNonceConflict   = errors.New("nonce conflict")
	ErrUnderpriced     = errors.New("transaction underpriced")
	ErrAlreadyKnown    = errors.New("transaction already known")
)

// node error fragments, checked in order
var rpcErrorClasses = []struct {
	fragment string
	class    error
}{
	{"replacement transaction underpriced", ErrNonceConflict},
	{"nonce too low", ErrNonceConflict},
	{"nonce too high", ErrNonceConflict},
	{"already known", ErrAlreadyKnown},
	{"known transaction", ErrAlreadyKnown},
	{"transaction underpriced", ErrUnderpriced},
	{"fee too low", ErrUnderpriced},
	{"gas price too low", ErrUnderpriced},
	{"max fee per gas less than block base fee", ErrUnderpriced},
}

// ClassifyError wraps a node submission error with one of the sentinel
// classes so callers can use errors.Is. Unrecognised errors pass through.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, c := range rpcErrorClasses {
		if strings.Contains(msg, c.fragment) {
			return fmt.Errorf("%w: %v", c.class, err)
		}
	}
	return err
}
