package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
	"classifieds/pkg/errors"
)

type firestoreMessageRepository struct {
	client *firestore.Client
}

func NewFirestoreMessageRepository(client *firestore.Client) repository.MessageRepository {
	return &firestoreMessageRepository{
		client: client,
	}
}

func (r *firestoreMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		message.ID = r.client.Collection(messagesCollection).NewDoc().ID
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	_, err := r.client.Collection(messagesCollection).Doc(message.ID).Set(ctx, message)
	if err != nil {
		return errors.Internal("Failed to create message", err)
	}

	return nil
}

func (r *firestoreMessageRepository) byConversation(conversationID string) firestore.Query {
	return r.client.Collection(messagesCollection).Where("conversationId", "==", conversationID)
}

func (r *firestoreMessageRepository) ListPage(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	total, err := countQuery(ctx, r.byConversation(conversationID))
	if err != nil {
		return nil, 0, errors.Internal("Failed to count messages", err)
	}

	query := r.byConversation(conversationID).OrderBy("createdAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var messages []*entity.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, errors.Internal("Failed to iterate messages", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			return nil, 0, errors.Internal("Failed to parse message data", err)
		}
		message.ID = doc.Ref.ID
		messages = append(messages, &message)
	}

	entity.SortMessages(messages)
	return messages, total, nil
}

func (r *firestoreMessageRepository) Latest(ctx context.Context, conversationID string) (*entity.Message, error) {
	iter := r.byConversation(conversationID).OrderBy("createdAt", firestore.Desc).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err != nil {
		if err == iterator.Done {
			return nil, errors.NotFound("Message", nil)
		}
		return nil, errors.Internal("Failed to get latest message", err)
	}

	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	message.ID = doc.Ref.ID

	return &message, nil
}

func (r *firestoreMessageRepository) Reassign(ctx context.Context, fromConversationID, toConversationID string) (int, error) {
	docs, err := r.byConversation(fromConversationID).Documents(ctx).GetAll()
	if err != nil {
		return 0, errors.Internal("Failed to list messages", err)
	}

	err = bulkApply(ctx, r.client, refsOf(docs), func(bw *firestore.BulkWriter, ref *firestore.DocumentRef) (*firestore.BulkWriterJob, error) {
		return bw.Update(ref, []firestore.Update{{Path: "conversationId", Value: toConversationID}})
	})
	if err != nil {
		return 0, errors.Internal("Failed to reassign messages", err)
	}

	return len(docs), nil
}

func (r *firestoreMessageRepository) HasInquiry(ctx context.Context, conversationID, postID string) (bool, error) {
	iter := r.byConversation(conversationID).Where("postId", "==", postID).Limit(1).Documents(ctx)
	defer iter.Stop()

	_, err := iter.Next()
	if err == iterator.Done {
		return false, nil
	}
	if err != nil {
		return false, errors.Internal("Failed to look up inquiry", err)
	}

	return true, nil
}
