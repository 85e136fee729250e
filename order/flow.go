package order

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	// StateRetryable follows a failed attempt. Nothing was reset, so the
	// same design can be sent again.
	StateRetryable State = "retryable"
)

const (
	LabelSubmit     = "Trimite comanda"
	LabelSubmitting = "Se trimite..."
)

type (
	// DesignFunc produces the flattened design image for an order.
	DesignFunc func(ctx context.Context) ([]byte, error)

	Request struct {
		Customer Customer
		Product  Product
		Files    []Attachment
		// Design is nil for products that travel without an image.
		Design   DesignFunc
		// OnSuccess runs after the service accepted the order.
		OnSuccess func()
	}

	// Control describes the submit button.
	Control struct {
		Enabled bool   `json:"enabled"`
		Label   string `json:"label"`
	}

	// Flow is the submission state machine of one session.
	Flow struct {
		sender  Sender
		timeout time.Duration

		mu      sync.Mutex
		state   State
		lastErr error
	}
)

func NewFlow(sender Sender, timeout time.Duration) *Flow {
	if sender == nil {
		panic("order: flow needs a sender")
	}
	return &Flow{sender: sender, timeout: timeout, state: StateIdle}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// LastError returns the error of the last failed attempt, if the flow is
// waiting for a retry.
func (f *Flow) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

func (f *Flow) Control() Control {
	if f.State() == StateSubmitting {
		return Control{Enabled: false, Label: LabelSubmitting}
	}
	return Control{Enabled: true, Label: LabelSubmit}
}

// Submit validates req, exports the design and sends the order. Validation
// failures return before any network call and leave the state untouched.
func (f *Flow) Submit(ctx context.Context, req Request) error {
	if req.Product == nil {
		return ErrNoProduct
	}
	if err := req.Customer.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	if f.state == StateSubmitting {
		f.mu.Unlock()
		return ErrSubmitInProgress
	}
	f.state = StateSubmitting
	f.mu.Unlock()

	log := logrus.WithField("endpoint", req.Product.Endpoint())
	err := f.send(ctx, req)

	f.mu.Lock()
	if err != nil {
		f.state, f.lastErr = StateRetryable, err
		f.mu.Unlock()
		log.WithError(err).Warn("Order submission failed")
		return err
	}
	f.state, f.lastErr = StateIdle, nil
	f.mu.Unlock()

	log.Info("Order submitted successfully")
	if req.OnSuccess != nil {
		req.OnSuccess()
	}
	return nil
}

func (f *Flow) send(ctx context.Context, req Request) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	var design []byte
	if req.Design != nil {
		var err error
		if design, err = req.Design(ctx); err != nil {
			return fmt.Errorf("export design: %w", err)
		}
	}

	o := Order{
		Path:   req.Product.Endpoint(),
		Fields: append(req.Customer.fields(), req.Product.Fields()...),
		Design: design,
		Files:  req.Files,
	}
	return f.sender.Send(ctx, o)
}
