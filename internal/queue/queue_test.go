// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

package queue_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/theredstring/bridge/internal/queue"
)

func TestPullPartitionFairness(t *testing.T) {
	q := queue.New[string]("test-fairness", time.Minute)

	q.Enqueue("A1", "A")
	q.Enqueue("A2", "A")
	q.Enqueue("A3", "A")
	q.Enqueue("B1", "B")
	q.Enqueue("C1", "C")

	got := q.Pull(3)
	require.Len(t, got, 3)

	seen := map[string]bool{}
	for _, r := range got {
		seen[r.PartitionKey] = true
	}
	require.Len(t, seen, 3, "expected one task per thread (round-robin fairness)")
}

func TestAckRemovesRecordPermanently(t *testing.T) {
	q := queue.New[string]("test-ack", time.Minute)
	q.Enqueue("payload", "p1")

	got := q.Pull(1)
	require.Len(t, got, 1)
	require.True(t, q.Ack(got[0].LeaseID))
	require.Equal(t, 0, q.Len())

	// A second pull should see nothing left.
	require.Empty(t, q.Pull(1))
}

func TestNackMakesRecordEligibleAgain(t *testing.T) {
	q := queue.New[string]("test-nack", time.Minute)
	q.Enqueue("payload", "p1")

	first := q.Pull(1)
	require.Len(t, first, 1)

	// While leased, a second puller sees nothing for that partition.
	require.Empty(t, q.Pull(1))

	require.True(t, q.Nack(first[0].LeaseID))

	second := q.Pull(1)
	require.Len(t, second, 1)
	require.Equal(t, first[0].ID, second[0].ID)
}

func TestAtMostOneLeasePerRecord(t *testing.T) {
	q := queue.New[string]("test-exclusive", time.Minute)
	q.Enqueue("only", "p1")

	first := q.Pull(5)
	require.Len(t, first, 1)

	// Pulling again before ack/nack must not return the same record.
	again := q.Pull(5)
	require.Empty(t, again)
}

func TestLeaseExpirySweepRedelivers(t *testing.T) {
	q := queue.New[string]("test-expiry", time.Millisecond)
	q.Enqueue("payload", "p1")

	got := q.Pull(1)
	require.Len(t, got, 1)

	time.Sleep(5 * time.Millisecond)
	cleared := q.SweepExpiredLeases()
	require.Equal(t, 1, cleared)

	redelivered := q.Pull(1)
	require.Len(t, redelivered, 1)
	require.Equal(t, got[0].ID, redelivered[0].ID)
}
