// Copyright 2025 The agenthub-go Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package actor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/agenthub-go/pkg/activity"
)

func TestNewMailbox(t *testing.T) {
	mb := NewMailbox("a1", Options{Capacity: 10})
	assert.NotNil(t, mb)
	assert.Equal(t, "a1", mb.AgentID())
	assert.Equal(t, 10, cap(mb.defaultLane))
	// Prioritization disabled: no priority lanes are allocated.
	assert.Nil(t, mb.lanes[0])
}

func TestMailboxOfferAndReceive(t *testing.T) {
	mb := NewMailbox("a1", Options{Capacity: 1})
	act := activity.New("a1", activity.KindCommand, "hello")

	require.NoError(t, mb.Offer(act))

	received, err := mb.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, act.ID, received.ID)
	assert.Equal(t, "hello", received.Payload)
}

func TestMailboxFIFOOrder(t *testing.T) {
	mb := NewMailbox("a1", Options{Capacity: 16})

	var sent []string
	for i := 0; i < 10; i++ {
		act := activity.New("a1", activity.KindCommand, i)
		sent = append(sent, act.ID)
		require.NoError(t, mb.Offer(act))
	}

	for i := 0; i < 10; i++ {
		received, err := mb.Receive(context.Background())
		require.NoError(t, err)
		assert.Equal(t, sent[i], received.ID, "activity %d out of order", i)
	}
}

func TestMailboxReceiveWithContextCancellation(t *testing.T) {
	mb := NewMailbox("a1", Options{Capacity: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mb.Receive(ctx)
	assert.Equal(t, context.Canceled, err)
}

func TestMailboxDropOldest(t *testing.T) {
	// Capacity 2, offer A, B, C: the mailbox must retain {B, C}.
	mb := NewMailbox("a1", Options{Capacity: 2})

	a := activity.New("a1", activity.KindCommand, "A")
	b := activity.New("a1", activity.KindCommand, "B")
	c := activity.New("a1", activity.KindCommand, "C")
	require.NoError(t, mb.Offer(a))
	require.NoError(t, mb.Offer(b))
	require.NoError(t, mb.Offer(c))

	assert.Equal(t, 2, mb.Len())
	assert.Equal(t, uint64(1), mb.Dropped())

	first, err := mb.Receive(context.Background())
	require.NoError(t, err)
	second, err := mb.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "B", first.Payload)
	assert.Equal(t, "C", second.Payload)
}

func TestMailboxDropCallback(t *testing.T) {
	var dropped []activity.Activity
	mb := NewMailbox("a1", Options{
		Capacity: 1,
		OnDrop:   func(act activity.Activity) { dropped = append(dropped, act) },
	})

	require.NoError(t, mb.Offer(activity.New("a1", activity.KindCommand, "old")))
	require.NoError(t, mb.Offer(activity.New("a1", activity.KindCommand, "new")))

	require.Len(t, dropped, 1)
	assert.Equal(t, "old", dropped[0].Payload)
}

func TestMailboxPriorityPreemption(t *testing.T) {
	// A priority-0 activity offered after a priority-3 one is still
	// received first, as long as both are queued before the drain.
	mb := NewMailbox("a1", Options{
		Capacity:             8,
		PriorityLaneCapacity: 8,
		EnablePrioritization: true,
	})

	low := activity.New("a1", activity.KindCommand, "low").WithPriority(3)
	high := activity.New("a1", activity.KindCommand, "high").WithPriority(0)
	require.NoError(t, mb.Offer(low))
	require.NoError(t, mb.Offer(high))

	first, err := mb.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "high", first.Payload)

	second, err := mb.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "low", second.Payload)
}

func TestMailboxPriorityLanesBeforeDefault(t *testing.T) {
	mb := NewMailbox("a1", Options{
		Capacity:             8,
		PriorityLaneCapacity: 8,
		EnablePrioritization: true,
	})

	require.NoError(t, mb.Offer(activity.New("a1", activity.KindCommand, "default")))
	require.NoError(t, mb.Offer(activity.New("a1", activity.KindCommand, "p2").WithPriority(2)))
	require.NoError(t, mb.Offer(activity.New("a1", activity.KindCommand, "p1").WithPriority(1)))

	var order []interface{}
	for i := 0; i < 3; i++ {
		act, err := mb.Receive(context.Background())
		require.NoError(t, err)
		order = append(order, act.Payload)
	}
	assert.Equal(t, []interface{}{"p1", "p2", "default"}, order)
}

func TestMailboxInvalidPriority(t *testing.T) {
	mb := NewMailbox("a1", Options{
		Capacity:             4,
		PriorityLaneCapacity: 4,
		EnablePrioritization: true,
	})

	err := mb.Offer(activity.New("a1", activity.KindCommand, "x").WithPriority(7))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPriority)
	assert.Contains(t, err.Error(), "a1")
}

func TestMailboxInvalidPriorityIgnoredWhenDisabled(t *testing.T) {
	// Without prioritization there are no lanes to validate against; the
	// activity lands in the single lane regardless of declared priority.
	mb := NewMailbox("a1", Options{Capacity: 4})

	require.NoError(t, mb.Offer(activity.New("a1", activity.KindCommand, "x").WithPriority(7)))
	act, err := mb.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "x", act.Payload)
}

func TestMailboxShutdown(t *testing.T) {
	mb := NewMailbox("a1", Options{Capacity: 4})
	require.NoError(t, mb.Offer(activity.New("a1", activity.KindCommand, "queued")))

	mb.Shutdown()
	mb.Shutdown() // idempotent

	assert.Equal(t, 0, mb.Len())
	assert.Equal(t, ErrMailboxClosed, mb.Offer(activity.New("a1", activity.KindCommand, "late")))

	_, err := mb.Receive(context.Background())
	assert.Equal(t, ErrMailboxClosed, err)
}

func TestMailboxReceiveBlocksUntilOffer(t *testing.T) {
	mb := NewMailbox("a1", Options{Capacity: 1})

	got := make(chan activity.Activity, 1)
	go func() {
		act, err := mb.Receive(context.Background())
		if err == nil {
			got <- act
		}
	}()

	// Give the receiver a moment to block.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, mb.Offer(activity.New("a1", activity.KindCommand, "wake")))

	select {
	case act := <-got:
		assert.Equal(t, "wake", act.Payload)
	case <-time.After(time.Second):
		t.Fatal("Receive did not return after Offer")
	}
}
