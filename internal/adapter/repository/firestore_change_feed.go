package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
	"classifieds/pkg/logger"
)

type firestoreChangeFeed struct {
	client *firestore.Client
	now    func() time.Time
}

// NewFirestoreChangeFeed listens to message and conversation inserts through
// query snapshot listeners.
func NewFirestoreChangeFeed(client *firestore.Client) repository.ChangeFeed {
	return &firestoreChangeFeed{
		client: client,
		now:    time.Now,
	}
}

func (f *firestoreChangeFeed) Subscribe(ctx context.Context, handle func(context.Context, repository.ChangeEvent)) error {
	since := f.now()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return f.listen(ctx, messagesCollection, since, func(doc *firestore.DocumentSnapshot) {
			var message entity.Message
			if err := doc.DataTo(&message); err != nil {
				logger.Warn("ChangeFeed: skipping malformed message %s: %v", doc.Ref.ID, err)
				return
			}
			message.ID = doc.Ref.ID
			handle(ctx, repository.ChangeEvent{Kind: repository.MessageInserted, Message: &message})
		})
	})

	g.Go(func() error {
		return f.listen(ctx, conversationsCollection, since, func(doc *firestore.DocumentSnapshot) {
			conversation, err := parseConversation(doc)
			if err != nil {
				logger.Warn("ChangeFeed: skipping malformed conversation %s: %v", doc.Ref.ID, err)
				return
			}
			handle(ctx, repository.ChangeEvent{Kind: repository.ConversationInserted, Conversation: conversation})
		})
	})

	return g.Wait()
}

func (f *firestoreChangeFeed) listen(ctx context.Context, collection string, since time.Time, added func(*firestore.DocumentSnapshot)) error {
	it := f.client.Collection(collection).Where("createdAt", ">=", since).Snapshots(ctx)
	defer it.Stop()

	// Everything matching the query was created after since, so the initial
	// snapshot is made of real inserts too.
	for {
		snap, err := it.Next()
		if err != nil {
			if ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return nil
			}
			return err
		}

		for _, change := range snap.Changes {
			if change.Kind == firestore.DocumentAdded {
				added(change.Doc)
			}
		}
	}
}
