// Tests for ChannelPublisher delivery and backpressure behavior.
package production

import (
	"context"
	"testing"
	"time"

	"github.com/waferflow/statechart/internal/mailbox"
)

func TestChannelPublisher_Delivery(t *testing.T) {
	ch := make(chan mailbox.Notification, 10)
	p := NewChannelPublisher(ch)

	n := mailbox.Notification{
		InstanceID: "test-machine",
		Kind:       "StateChanged",
		Detail:     "s1 -> s2",
	}

	ctx := context.Background()
	if err := p.Publish(ctx, n); err != nil {
		t.Errorf("Publish failed: %v", err)
	}

	select {
	case got := <-ch:
		if got.InstanceID != n.InstanceID {
			t.Errorf("InstanceID mismatch: got %q, want %q", got.InstanceID, n.InstanceID)
		}
		if got.Detail != n.Detail {
			t.Errorf("Detail mismatch: got %q, want %q", got.Detail, n.Detail)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("no notification delivered")
	}
}

func TestChannelPublisher_BackpressureDrop(t *testing.T) {
	ch := make(chan mailbox.Notification, 1)
	p := NewChannelPublisher(ch)
	ch <- mailbox.Notification{} // fill buffer

	ctx := context.Background()
	err := p.Publish(ctx, mailbox.Notification{InstanceID: "drop-test"})
	if err != nil {
		t.Errorf("Publish on full channel failed: %v", err)
	}
	// should drop silently
}

func TestChannelPublisher_Close(t *testing.T) {
	ch := make(chan mailbox.Notification, 1)
	p := NewChannelPublisher(ch)

	if err := p.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestChannelPublisher_Integration_PublishMetadata(t *testing.T) {
	publishCh := make(chan mailbox.Notification, 10)
	publisher := NewChannelPublisher(publishCh)

	n := mailbox.Notification{
		InstanceID: "integration-test",
		Kind:       "StateChanged",
		Detail:     "green -> yellow",
	}

	ctx := context.Background()
	if err := publisher.Publish(ctx, n); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-publishCh:
		if got.Detail != "green -> yellow" {
			t.Errorf("Detail mismatch: got %q, want %q", got.Detail, "green -> yellow")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("no published notification received")
	}
}
