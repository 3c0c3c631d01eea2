package database

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/escaladev/escala/pkg/models"
)

// AddRequest appends a new workflow request and returns its id.
func (t *Tenant) AddRequest(ctx context.Context, req models.Request) (string, error) {
	ref, _, err := t.root().Collection(requestsCollection).Add(ctx, req)
	if err != nil {
		return "", fmt.Errorf("add request: %w", err)
	}
	return ref.ID, nil
}

// Request fetches one request by id.
func (t *Tenant) Request(ctx context.Context, id string) (*models.Request, error) {
	doc, err := t.root().Collection(requestsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	return decodeRequest(doc)
}

// UpdateRequestStatus transitions a request's status field.
func (t *Tenant) UpdateRequestStatus(ctx context.Context, id, newStatus string) error {
	_, err := t.root().Collection(requestsCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "status", Value: newStatus},
	})
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	return nil
}

// DeleteRequest removes a request document.
func (t *Tenant) DeleteRequest(ctx context.Context, id string) error {
	_, err := t.root().Collection(requestsCollection).Doc(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	return nil
}

// SentRequests lists the requests created by one user.
func (t *Tenant) SentRequests(ctx context.Context, requesterUID string) ([]models.Request, error) {
	return t.queryRequests(ctx, t.sentQuery(requesterUID))
}

// InboxRequests lists peer-swap requests awaiting one user's answer.
func (t *Tenant) InboxRequests(ctx context.Context, targetUID string) ([]models.Request, error) {
	return t.queryRequests(ctx, t.inboxQuery(targetUID))
}

// LeaderRequests lists everything awaiting manager resolution.
func (t *Tenant) LeaderRequests(ctx context.Context) ([]models.Request, error) {
	q := t.root().Collection(requestsCollection).
		Where("status", "==", models.StatusPendingLeader)
	return t.queryRequests(ctx, q)
}

// SubscribeSent establishes the "my sent requests" live query.
func (t *Tenant) SubscribeSent(ctx context.Context, requesterUID string, fn func([]models.Request)) Subscription {
	return t.subscribeRequests(ctx, t.sentQuery(requesterUID), fn)
}

// SubscribeInbox establishes the "my inbox" live query
// (addressed to me, still pending my answer).
func (t *Tenant) SubscribeInbox(ctx context.Context, targetUID string, fn func([]models.Request)) Subscription {
	return t.subscribeRequests(ctx, t.inboxQuery(targetUID), fn)
}

func (t *Tenant) sentQuery(requesterUID string) firestore.Query {
	return t.root().Collection(requestsCollection).
		Where("requesterUid", "==", requesterUID)
}

func (t *Tenant) inboxQuery(targetUID string) firestore.Query {
	return t.root().Collection(requestsCollection).
		Where("targetUid", "==", targetUID).
		Where("status", "==", models.StatusPendingPeer)
}

func (t *Tenant) subscribeRequests(ctx context.Context, q firestore.Query, fn func([]models.Request)) Subscription {
	return subscribe(ctx, q, func(docs []*firestore.DocumentSnapshot) {
		reqs := make([]models.Request, 0, len(docs))
		for _, doc := range docs {
			req, err := decodeRequest(doc)
			if err != nil {
				continue
			}
			reqs = append(reqs, *req)
		}
		fn(reqs)
	})
}

func (t *Tenant) queryRequests(ctx context.Context, q firestore.Query) ([]models.Request, error) {
	docs, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}

	reqs := make([]models.Request, 0, len(docs))
	for _, doc := range docs {
		req, err := decodeRequest(doc)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, *req)
	}
	return reqs, nil
}

func decodeRequest(doc *firestore.DocumentSnapshot) (*models.Request, error) {
	var req models.Request
	if err := doc.DataTo(&req); err != nil {
		return nil, fmt.Errorf("decode request %s: %w", doc.Ref.ID, err)
	}
	req.ID = doc.Ref.ID
	return &req, nil
}
