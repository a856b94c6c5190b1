package pickup

import (
	"context"
	"fmt"
	"time"

	"github.com/coregx/pickup/message"
)

// InboundMessage is a decoded protocol message together with what the
// transport layer established about its origin.
type InboundMessage struct {
	Message         message.Message
	SenderKey       string // Verified key of the sending agent
	ConnectionID    string // Connection the message arrived on, if any
	ConnectionReady bool   // True when the connection is established
}

// Observer receives one callback per dispatched message.
// The server uses it to export metrics.
type Observer interface {
	ObserveDispatch(kind message.Kind, elapsed time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveDispatch(message.Kind, time.Duration, error) {}

// DispatcherOption is a function that configures a Dispatcher.
type DispatcherOption func(*Dispatcher) error

// WithDispatcherLogger sets the logger instance for the dispatcher.
// Default: the NoopLogger.
func WithDispatcherLogger(logger Logger) DispatcherOption {
	return func(d *Dispatcher) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		d.logger = logger
		return nil
	}
}

// WithObserver sets the dispatch observer.
func WithObserver(observer Observer) DispatcherOption {
	return func(d *Dispatcher) error {
		if observer == nil {
			return fmt.Errorf("observer cannot be nil")
		}
		d.observer = observer
		return nil
	}
}

type handlerFunc func(ctx context.Context, in InboundMessage, responder Responder) error

// Dispatcher routes inbound pickup messages to the manager.
//
// Every handler requires an established connection. Requests are answered
// through the Responder; for batch pickup the reply is sent before the
// records are marked delivered. Responses received from a mediator are
// logged.
type Dispatcher struct {
	manager  *Manager
	logger   Logger
	observer Observer
	handlers map[message.Kind]handlerFunc
}

// NewDispatcher creates a dispatcher bound to manager.
func NewDispatcher(manager *Manager, opts ...DispatcherOption) (*Dispatcher, error) {
	if manager == nil {
		return nil, NewError(ErrCodeConfiguration, "Manager is required")
	}

	d := &Dispatcher{
		manager:  manager,
		logger:   &NoopLogger{},
		observer: noopObserver{},
	}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply dispatcher option", err)
		}
	}

	d.handlers = map[message.Kind]handlerFunc{
		message.KindBatchPickupRequest:   d.handleBatchPickupRequest,
		message.KindStatusRequest:        d.handleStatusRequest,
		message.KindListPickupRequest:    d.handleListPickupRequest,
		message.KindDeletePickupRequest:  d.handleDeletePickupRequest,
		message.KindBatchPickupResponse:  d.handleBatchPickupResponse,
		message.KindStatusResponse:       d.handleStatusResponse,
		message.KindListPickupResponse:   d.handleListPickupResponse,
		message.KindDeletePickupResponse: d.handleDeletePickupResponse,
	}

	return d, nil
}

// Dispatch handles one inbound message.
//
// A message that did not arrive over a ready connection fails with a
// PRECONDITION_FAILED error and no reply is sent.
func (d *Dispatcher) Dispatch(ctx context.Context, in InboundMessage, responder Responder) (err error) {
	start := time.Now()
	kind := message.KindUnknown
	if in.Message != nil {
		kind = in.Message.Kind()
	}
	defer func() {
		d.observer.ObserveDispatch(kind, time.Since(start), err)
	}()

	if in.Message == nil {
		return NewError(ErrCodeValidation, "inbound message is required")
	}

	handle, ok := d.handlers[kind]
	if !ok {
		return NewError(ErrCodeUnsupportedMessage,
			fmt.Sprintf("no handler for message type %q", in.Message.MessageType()))
	}

	if !in.ConnectionReady {
		d.logger.Warnf("Rejected %s: connection not ready (connection=%s)", kind, in.ConnectionID)
		return ErrConnectionNotReady
	}

	if kind.IsRequest() && responder == nil {
		return NewError(ErrCodeConfiguration, "responder is required for "+kind.String())
	}

	d.logger.Debugf("Dispatching %s: id=%s, connection=%s", kind, in.Message.MessageID(), in.ConnectionID)
	return handle(ctx, in, responder)
}

func (d *Dispatcher) handleBatchPickupRequest(ctx context.Context, in InboundMessage, responder Responder) error {
	req, ok := in.Message.(*message.BatchPickupRequest)
	if !ok {
		return mismatched(in.Message)
	}

	resp, records, err := d.manager.ReceiveBatchPickupRequest(ctx, req, in.SenderKey)
	if err != nil {
		return err
	}

	if err := reply(ctx, responder, resp); err != nil {
		return err
	}

	return d.manager.MarkDelivered(ctx, records)
}

func (d *Dispatcher) handleStatusRequest(ctx context.Context, in InboundMessage, responder Responder) error {
	req, ok := in.Message.(*message.StatusRequest)
	if !ok {
		return mismatched(in.Message)
	}

	resp, err := d.manager.ReceiveStatusRequest(ctx, req, in.SenderKey)
	if err != nil {
		return err
	}
	return reply(ctx, responder, resp)
}

func (d *Dispatcher) handleListPickupRequest(ctx context.Context, in InboundMessage, responder Responder) error {
	req, ok := in.Message.(*message.ListPickupRequest)
	if !ok {
		return mismatched(in.Message)
	}

	resp, _, err := d.manager.ReceiveListRequest(ctx, req, in.SenderKey)
	if err != nil {
		return err
	}
	return reply(ctx, responder, resp)
}

func (d *Dispatcher) handleDeletePickupRequest(ctx context.Context, in InboundMessage, responder Responder) error {
	req, ok := in.Message.(*message.DeletePickupRequest)
	if !ok {
		return mismatched(in.Message)
	}

	resp, err := d.manager.ReceiveDeletePickupRequest(ctx, req, in.SenderKey)
	if err != nil {
		return err
	}
	return reply(ctx, responder, resp)
}

func (d *Dispatcher) handleBatchPickupResponse(_ context.Context, in InboundMessage, _ Responder) error {
	resp, ok := in.Message.(*message.BatchPickupResponse)
	if !ok {
		return mismatched(in.Message)
	}
	d.logger.Infof("Received batch pickup response: thread=%s, messages=%d", resp.ThreadID(), len(resp.Messages))
	return nil
}

func (d *Dispatcher) handleListPickupResponse(_ context.Context, in InboundMessage, _ Responder) error {
	resp, ok := in.Message.(*message.ListPickupResponse)
	if !ok {
		return mismatched(in.Message)
	}
	d.logger.Infof("Received list pickup response: thread=%s, messages=%d", resp.ThreadID(), len(resp.Messages))
	return nil
}

func (d *Dispatcher) handleStatusResponse(_ context.Context, in InboundMessage, _ Responder) error {
	resp, ok := in.Message.(*message.StatusResponse)
	if !ok {
		return mismatched(in.Message)
	}
	d.logger.Infof("Received status response: thread=%s, message_count=%d, total_size=%d",
		resp.ThreadID(), resp.MessageCount, resp.TotalSize)
	return nil
}

func (d *Dispatcher) handleDeletePickupResponse(ctx context.Context, in InboundMessage, _ Responder) error {
	resp, ok := in.Message.(*message.DeletePickupResponse)
	if !ok {
		return mismatched(in.Message)
	}
	d.manager.ReceiveDeletePickupResponse(ctx, resp)
	return nil
}

func reply(ctx context.Context, responder Responder, msg message.Message) error {
	if err := responder.Reply(ctx, msg); err != nil {
		return NewErrorWithCause(ErrCodeDelivery, "failed to send "+msg.Kind().String(), err)
	}
	return nil
}

func mismatched(msg message.Message) error {
	return NewError(ErrCodeUnsupportedMessage,
		fmt.Sprintf("message type %q does not match envelope %T", msg.MessageType(), msg))
}
