package database

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Subscription is a cancellation handle for a live query. Cancel tears
// down the snapshot listener; Done is closed once the listener loop has
// fully stopped, so a caller can wait before installing a replacement
// subscription for the same data.
type Subscription interface {
	Cancel()
	Done() <-chan struct{}
}

type liveQuery struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops the subscription. Safe to call more than once.
func (l *liveQuery) Cancel() { l.cancel() }

// Done returns a channel closed when the listener loop has exited.
func (l *liveQuery) Done() <-chan struct{} { return l.done }

// subscribe runs a snapshot listener for query, invoking fn with the
// full document set on the initial snapshot and on every subsequent
// change until the subscription is cancelled. Deliveries happen on a
// single goroutine, in backend order.
func subscribe(ctx context.Context, query firestore.Query, fn func([]*firestore.DocumentSnapshot)) Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &liveQuery{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)

		it := query.Snapshots(ctx)
		defer it.Stop()

		for {
			snap, err := it.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					log.Error().Err(err).Msg("live query terminated")
				}
				return
			}

			docs, err := snap.Documents.GetAll()
			if err != nil {
				log.Error().Err(err).Msg("live query snapshot read failed")
				continue
			}
			fn(docs)
		}
	}()

	return sub
}
