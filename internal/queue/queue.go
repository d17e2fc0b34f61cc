// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

// Package queue implements the lease-based multi-queue primitive described
// in: at-most-one in-flight delivery per record, partition-key
// fairness via round-robin, ack/nack, and timeout-driven redelivery.
//
// Thread Safety:
//
//	Queue is safe for concurrent use. All operations are internally
//	serialized behind a single mutex.
package queue

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Record is one enqueued item. Payload is caller-defined; PartitionKey
// groups records for fairness.
type Record[T any] struct {
	ID             string
	Payload        T
	PartitionKey   string
	EnqueuedAt     time.Time
	LeaseID        string
	LeaseExpiresAt time.Time
}

// leased reports whether the record currently holds an active lease.
func (r Record[T]) leased(now time.Time) bool {
	return r.LeaseID != "" && now.Before(r.LeaseExpiresAt)
}

// Queue is a named, partition-fair, lease-based FIFO queue holding
// records of type T.
type Queue[T any] struct {
	name         string
	leaseTimeout time.Duration

	mu      sync.Mutex
	records []*Record[T]
	byLease map[string]*Record[T]
	// partitionOrder lists the distinct partitions in first-seen order;
	// Pull walks it round-robin so it is fair across partitions rather
	// than always favoring the first one found.
	partitionOrder []string

	depthGauge   prometheus.Gauge
	expiredCount prometheus.Counter
}

// New constructs a Queue named name with the given lease timeout. name is
// used only for metric labeling.
func New[T any](name string, leaseTimeout time.Duration) *Queue[T] {
	return &Queue[T]{
		name:         name,
		leaseTimeout: leaseTimeout,
		byLease:      make(map[string]*Record[T]),
		depthGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "bridge",
			Subsystem:   "queue",
			Name:        "depth",
			Help:        "Number of records currently enqueued (leased or not).",
			ConstLabels: prometheus.Labels{"queue": name},
		}),
		expiredCount: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "bridge",
			Subsystem:   "queue",
			Name:        "leases_expired_total",
			Help:        "Number of leases reclaimed by the expiry sweep.",
			ConstLabels: prometheus.Labels{"queue": name},
		}),
	}
}

// Enqueue appends a record to the tail of the queue. O(1) amortized.
func (q *Queue[T]) Enqueue(payload T, partitionKey string) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec := &Record[T]{
		ID:           uuid.NewString(),
		Payload:      payload,
		PartitionKey: partitionKey,
		EnqueuedAt:   time.Now(),
	}
	q.records = append(q.records, rec)
	q.touchPartition(partitionKey)
	q.depthGauge.Set(float64(len(q.records)))
	return rec.ID
}

func (q *Queue[T]) touchPartition(key string) {
	for _, k := range q.partitionOrder {
		if k == key {
			return
		}
	}
	q.partitionOrder = append(q.partitionOrder, key)
}

// Pull returns up to max records whose partition is not already leased,
// in FIFO order among eligible partitions, round-robin across partitions.
// Each returned record is stamped with a fresh lease id and expiry.
func (q *Queue[T]) Pull(max int) []Record[T] {
	if max <= 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	leasedPartitions := make(map[string]bool)
	for _, r := range q.records {
		if r.leased(now) {
			leasedPartitions[r.PartitionKey] = true
		}
	}

	var out []Record[T]
	taken := make(map[string]bool)

	// Round-robin: walk partitions in the order first seen, taking one
	// eligible record per partition per pass, until max is reached or no
	// partition has more eligible work.
	for len(out) < max {
		progressed := false
		for _, part := range q.partitionOrder {
			if len(out) >= max {
				break
			}
			if leasedPartitions[part] {
				continue
			}
			rec := q.firstEligible(part, taken, now)
			if rec == nil {
				continue
			}
			rec.LeaseID = uuid.NewString()
			rec.LeaseExpiresAt = now.Add(q.leaseTimeout)
			q.byLease[rec.LeaseID] = rec
			taken[rec.ID] = true
			leasedPartitions[part] = true
			out = append(out, *rec)
			progressed = true
		}
		if !progressed {
			break
		}
	}

	q.depthGauge.Set(float64(len(q.records)))
	return out
}

// firstEligible returns the oldest not-yet-leased, not-yet-taken-this-call
// record in partition part.
func (q *Queue[T]) firstEligible(part string, taken map[string]bool, now time.Time) *Record[T] {
	for _, r := range q.records {
		if r.PartitionKey != part {
			continue
		}
		if taken[r.ID] || r.leased(now) {
			continue
		}
		return r
	}
	return nil
}

// Ack permanently removes the record holding leaseID. Acked records never
// reappear.
func (q *Queue[T]) Ack(leaseID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, ok := q.byLease[leaseID]
	if !ok {
		return false
	}
	delete(q.byLease, leaseID)
	for i, r := range q.records {
		if r.ID == rec.ID {
			q.records = append(q.records[:i], q.records[i+1:]...)
			break
		}
	}
	q.depthGauge.Set(float64(len(q.records)))
	return true
}

// Nack clears the lease on the record holding leaseID; it becomes eligible
// for redelivery again, FIFO among its partition.
func (q *Queue[T]) Nack(leaseID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, ok := q.byLease[leaseID]
	if !ok {
		return false
	}
	delete(q.byLease, leaseID)
	rec.LeaseID = ""
	rec.LeaseExpiresAt = time.Time{}
	return true
}

// SweepExpiredLeases clears leases past their expiry so their records
// become eligible for redelivery. Intended to be called periodically by
// the Scheduler or a dedicated background goroutine.
func (q *Queue[T]) SweepExpiredLeases() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	cleared := 0
	for leaseID, rec := range q.byLease {
		if now.After(rec.LeaseExpiresAt) {
			delete(q.byLease, leaseID)
			rec.LeaseID = ""
			rec.LeaseExpiresAt = time.Time{}
			cleared++
		}
	}
	if cleared > 0 {
		q.expiredCount.Add(float64(cleared))
	}
	return cleared
}

// Len returns the number of records currently enqueued (leased or not).
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}

// Name returns the queue's name.
func (q *Queue[T]) Name() string { return q.name }
