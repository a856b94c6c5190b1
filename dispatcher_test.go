package pickup_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/pickup"
	"github.com/coregx/pickup/message"
	"github.com/coregx/pickup/model"
)

// replies collects everything sent through the Responder.
type replies struct {
	sent []message.Message
	err  error
	hook func(msg message.Message)
}

func (r *replies) Reply(_ context.Context, msg message.Message) error {
	if r.hook != nil {
		r.hook(msg)
	}
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

type observation struct {
	kind message.Kind
	err  error
}

type recordingObserver struct {
	seen []observation
}

func (o *recordingObserver) ObserveDispatch(kind message.Kind, _ time.Duration, err error) {
	o.seen = append(o.seen, observation{kind: kind, err: err})
}

func newDispatcher(t *testing.T, f *fixture, opts ...pickup.DispatcherOption) *pickup.Dispatcher {
	t.Helper()

	d, err := pickup.NewDispatcher(f.manager, opts...)
	require.NoError(t, err)
	return d
}

func inbound(msg message.Message, key string) pickup.InboundMessage {
	return pickup.InboundMessage{
		Message:         msg,
		SenderKey:       key,
		ConnectionID:    "conn-1",
		ConnectionReady: true,
	}
}

func TestNewDispatcher_RequiresManager(t *testing.T) {
	_, err := pickup.NewDispatcher(nil)
	assert.Equal(t, pickup.ErrCodeConfiguration, pickup.ErrorCode(err))
}

func TestDispatcher_ConnectionNotReady(t *testing.T) {
	requests := []message.Message{
		message.NewBatchPickupRequest(message.FamilyLegacy, 5),
		message.NewStatusRequest(message.FamilyLegacy),
		message.NewListPickupRequest(message.FamilyLegacy, []string{"x"}),
		message.NewDeletePickupRequest(message.FamilyLegacy, []string{"x"}),
		message.NewStatusResponse(message.FamilyLegacy, 1, 1),
	}

	for _, req := range requests {
		t.Run(req.Kind().String(), func(t *testing.T) {
			f := newFixture(t)
			d := newDispatcher(t, f)
			out := &replies{}

			in := inbound(req, "kA")
			in.ConnectionReady = false

			err := d.Dispatch(context.Background(), in, out)

			assert.True(t, pickup.IsPreconditionFailed(err))
			assert.Empty(t, out.sent)
			assert.Equal(t, model.StateWaiting, f.state(t, f.m1.ID))
			assert.Equal(t, model.StateWaiting, f.state(t, f.m2.ID))
		})
	}
}

func TestDispatcher_BatchPickup_ReplyBeforeMarkDelivered(t *testing.T) {
	f := newFixture(t)
	d := newDispatcher(t, f)

	var stateAtReply model.DeliveryState
	out := &replies{hook: func(message.Message) {
		stateAtReply = f.state(t, f.m1.ID)
	}}

	req := message.NewBatchPickupRequest(message.FamilyLegacy, 1)
	err := d.Dispatch(context.Background(), inbound(req, "kA"), out)

	require.NoError(t, err)
	require.Len(t, out.sent, 1)

	resp, ok := out.sent[0].(*message.BatchPickupResponse)
	require.True(t, ok)
	assert.Equal(t, []string{f.m1.ID}, attachmentIDs(resp.Messages))
	assert.Equal(t, req.MessageID(), resp.ThreadID())

	assert.Equal(t, model.StateWaiting, stateAtReply)
	assert.Equal(t, model.StateSent, f.state(t, f.m1.ID))
	assert.Equal(t, model.StateWaiting, f.state(t, f.m2.ID))
}

func TestDispatcher_BatchPickup_ReplyFailureLeavesRecordsWaiting(t *testing.T) {
	f := newFixture(t)
	d := newDispatcher(t, f)
	out := &replies{err: errors.New("socket closed")}

	err := d.Dispatch(context.Background(), inbound(message.NewBatchPickupRequest(message.FamilyLegacy, 2), "kA"), out)

	require.Error(t, err)
	assert.Equal(t, pickup.ErrCodeDelivery, pickup.ErrorCode(err))
	assert.Equal(t, model.StateWaiting, f.state(t, f.m1.ID))
	assert.Equal(t, model.StateWaiting, f.state(t, f.m2.ID))
}

func TestDispatcher_BatchPickup_InvalidBatchSizeSendsNothing(t *testing.T) {
	f := newFixture(t)
	d := newDispatcher(t, f)
	out := &replies{}

	err := d.Dispatch(context.Background(), inbound(message.NewBatchPickupRequest(message.FamilyLegacy, 0), "kA"), out)

	assert.True(t, pickup.IsValidation(err))
	assert.Empty(t, out.sent)
}

func TestDispatcher_StatusRequest_BothFamilies(t *testing.T) {
	tests := []struct {
		name     string
		family   message.Family
		wantType string
	}{
		{name: "Legacy", family: message.FamilyLegacy, wantType: message.TypeStatusResponse},
		{name: "DIDComm", family: message.FamilyDIDComm, wantType: message.DIDCommTypeStatusResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			d := newDispatcher(t, f)
			out := &replies{}

			err := d.Dispatch(context.Background(), inbound(message.NewStatusRequest(tt.family), "kA"), out)

			require.NoError(t, err)
			require.Len(t, out.sent, 1)
			resp, ok := out.sent[0].(*message.StatusResponse)
			require.True(t, ok)
			assert.Equal(t, tt.wantType, resp.MessageType())
			assert.Equal(t, 2, resp.MessageCount)
			assert.Equal(t, 2, resp.TotalSize)
		})
	}
}

func TestDispatcher_DecodedDIDCommRequest(t *testing.T) {
	f := newFixture(t)
	d := newDispatcher(t, f)
	out := &replies{}

	msg, err := message.Decode([]byte(`{
		"@type": "https://didcomm.org/messagepickup/0.1/list_pickup_request",
		"@id": "list-1",
		"message_ids": ["` + f.m3.ID + `", "` + f.m2.ID + `"]
	}`))
	require.NoError(t, err)

	err = d.Dispatch(context.Background(), inbound(msg, "kB"), out)

	require.NoError(t, err)
	require.Len(t, out.sent, 1)
	resp, ok := out.sent[0].(*message.ListPickupResponse)
	require.True(t, ok)
	assert.Equal(t, []string{f.m3.ID}, attachmentIDs(resp.Messages))
	assert.Equal(t, "list-1", resp.ThreadID())
	assert.Equal(t, message.DIDCommTypeListPickupResponse, resp.MessageType())
	assert.Equal(t, model.StateWaiting, f.state(t, f.m3.ID))
}

func TestDispatcher_DeleteRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := newDispatcher(t, f)
	out := &replies{}

	err := d.Dispatch(ctx, inbound(message.NewDeletePickupRequest(message.FamilyLegacy, []string{f.m2.ID, f.m3.ID}), "kA"), out)

	require.NoError(t, err)
	require.Len(t, out.sent, 1)
	resp, ok := out.sent[0].(*message.DeletePickupResponse)
	require.True(t, ok)
	assert.Equal(t, []string{f.m2.ID}, resp.MessageIDs)

	_, err = f.repo.Load(ctx, f.m2.ID)
	assert.True(t, pickup.IsNotFound(err))
	_, err = f.repo.Load(ctx, f.m3.ID)
	assert.NoError(t, err)
}

func TestDispatcher_ResponsesAreInformational(t *testing.T) {
	responses := []message.Message{
		message.NewStatusResponse(message.FamilyLegacy, 3, 4),
		message.NewBatchPickupResponse(message.FamilyDIDComm, []message.Attachment{{ID: "a", Message: "{}"}}),
		message.NewListPickupResponse(message.FamilyLegacy, nil),
		message.NewDeletePickupResponse(message.FamilyLegacy, []string{"a"}),
	}

	for _, resp := range responses {
		t.Run(resp.Kind().String(), func(t *testing.T) {
			f := newFixture(t)
			d := newDispatcher(t, f)

			err := d.Dispatch(context.Background(), inbound(resp, "kA"), nil)

			assert.NoError(t, err)
			assert.Equal(t, model.StateWaiting, f.state(t, f.m1.ID))
		})
	}
}

func TestDispatcher_RequestWithoutResponder(t *testing.T) {
	f := newFixture(t)
	d := newDispatcher(t, f)

	err := d.Dispatch(context.Background(), inbound(message.NewStatusRequest(message.FamilyLegacy), "kA"), nil)

	assert.Equal(t, pickup.ErrCodeConfiguration, pickup.ErrorCode(err))
}

func TestDispatcher_UnknownType(t *testing.T) {
	f := newFixture(t)
	d := newDispatcher(t, f)

	msg := &message.StatusRequest{Base: message.Base{Type: "https://didcomm.org/trust_ping/1.0/ping", ID: "p"}}
	err := d.Dispatch(context.Background(), inbound(msg, "kA"), &replies{})

	assert.Equal(t, pickup.ErrCodeUnsupportedMessage, pickup.ErrorCode(err))
}

func TestDispatcher_MismatchedEnvelope(t *testing.T) {
	f := newFixture(t)
	d := newDispatcher(t, f)

	msg := &message.StatusRequest{Base: message.Base{Type: message.TypeBatchPickupRequest, ID: "b"}}
	err := d.Dispatch(context.Background(), inbound(msg, "kA"), &replies{})

	assert.Equal(t, pickup.ErrCodeUnsupportedMessage, pickup.ErrorCode(err))
}

func TestDispatcher_NilMessage(t *testing.T) {
	f := newFixture(t)
	d := newDispatcher(t, f)

	err := d.Dispatch(context.Background(), pickup.InboundMessage{ConnectionReady: true}, &replies{})

	assert.True(t, pickup.IsValidation(err))
}

func TestDispatcher_Observer(t *testing.T) {
	f := newFixture(t)
	observer := &recordingObserver{}
	d := newDispatcher(t, f, pickup.WithObserver(observer), pickup.WithDispatcherLogger(&pickup.NoopLogger{}))

	_ = d.Dispatch(context.Background(), inbound(message.NewStatusRequest(message.FamilyLegacy), "kA"), &replies{})

	notReady := inbound(message.NewBatchPickupRequest(message.FamilyLegacy, 1), "kA")
	notReady.ConnectionReady = false
	_ = d.Dispatch(context.Background(), notReady, &replies{})

	require.Len(t, observer.seen, 2)
	assert.Equal(t, message.KindStatusRequest, observer.seen[0].kind)
	assert.NoError(t, observer.seen[0].err)
	assert.Equal(t, message.KindBatchPickupRequest, observer.seen[1].kind)
	assert.True(t, pickup.IsPreconditionFailed(observer.seen[1].err))
}

func TestDispatcher_ResponderFunc(t *testing.T) {
	f := newFixture(t)
	d := newDispatcher(t, f)

	var got message.Message
	responder := pickup.ResponderFunc(func(_ context.Context, msg message.Message) error {
		got = msg
		return nil
	})

	err := d.Dispatch(context.Background(), inbound(message.NewStatusRequest(message.FamilyLegacy), "kB"), responder)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, message.KindStatusResponse, got.Kind())
}

func TestDispatcher_ListPickup_EmptyIDList(t *testing.T) {
	f := newFixture(t)
	d := newDispatcher(t, f)
	out := &replies{}

	msg, err := message.Decode([]byte(`{
		"@type": "did:sov:BzCbsNYhMrjHiqZDTUASHg;spec/messagepickup/1.0/list_pickup_request",
		"@id": "list-empty",
		"message_ids": []
	}`))
	require.NoError(t, err)

	err = d.Dispatch(context.Background(), inbound(msg, "kA"), out)

	require.NoError(t, err)
	require.Len(t, out.sent, 1)
	resp, ok := out.sent[0].(*message.ListPickupResponse)
	require.True(t, ok)
	assert.Empty(t, resp.Messages)
	assert.Equal(t, "list-empty", resp.ThreadID())
}
