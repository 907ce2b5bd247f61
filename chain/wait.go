package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// WaitOptions receipt polling schedule. Zero fields take the defaults.
type WaitOptions struct {
	Timeout      time.Duration // default 2m
	InitialDelay time.Duration // default 750ms
	Step         time.Duration // default 250ms
	MaxDelay     time.Duration // default 3s
}

func (o WaitOptions) withDefaults() WaitOptions {
	if o.Timeout <= 0 {
		o.Timeout = 2 * time.Minute
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 750 * time.Millisecond
	}
	if o.Step <= 0 {
		o.Step = 250 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 3 * time.Second
	}
	return o
}

// WaitReceipt polls for a receipt until mined or the timeout expires. Expiry
// returns ErrReceiptTimeout: the tx may still land and must not be treated as
// failed.
func WaitReceipt(ctx context.Context, c Client, hash common.Hash, opts WaitOptions) (*Receipt, error) {
	opts = opts.withDefaults()
	waitCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	delay := opts.InitialDelay
	for {
		receipt, err := c.TransactionReceipt(waitCtx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ErrReceiptNotFound) && waitCtx.Err() == nil {
			// transient RPC failure, keep polling until the deadline
			delay = opts.InitialDelay
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: tx %s after %s", ErrReceiptTimeout, hash.Hex(), opts.Timeout)
		case <-time.After(delay):
			if delay < opts.MaxDelay {
				delay += opts.Step
			}
		}
	}
}
