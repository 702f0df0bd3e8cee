package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
	"classifieds/pkg/errors"
)

type firestoreConversationRepository struct {
	client *firestore.Client
}

func NewFirestoreConversationRepository(client *firestore.Client) repository.ConversationRepository {
	return &firestoreConversationRepository{
		client: client,
	}
}

func (r *firestoreConversationRepository) Create(ctx context.Context, conversation *entity.Conversation) error {
	if conversation.ID == "" {
		conversation.ID = r.client.Collection(conversationsCollection).NewDoc().ID
	}
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = time.Now()
	}
	conversation.ParticipantKey = conversation.Key()

	_, err := r.client.Collection(conversationsCollection).Doc(conversation.ID).Set(ctx, conversation)
	if err != nil {
		return errors.Internal("Failed to create conversation", err)
	}

	return nil
}

func (r *firestoreConversationRepository) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	doc, err := r.client.Collection(conversationsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Conversation", err)
		}
		return nil, errors.Internal("Failed to get conversation", err)
	}

	return parseConversation(doc)
}

func (r *firestoreConversationRepository) GetByIDs(ctx context.Context, ids []string) ([]*entity.Conversation, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = r.client.Collection(conversationsCollection).Doc(id)
	}

	docs, err := r.client.GetAll(ctx, refs)
	if err != nil {
		return nil, errors.Internal("Failed to get conversations", err)
	}

	conversations := make([]*entity.Conversation, 0, len(docs))
	for _, doc := range docs {
		if !doc.Exists() {
			continue
		}
		conversation, err := parseConversation(doc)
		if err != nil {
			continue
		}
		conversations = append(conversations, conversation)
	}

	return conversations, nil
}

func (r *firestoreConversationRepository) FindBetween(ctx context.Context, userA, userB string) (*entity.Conversation, error) {
	iter := r.client.Collection(conversationsCollection).
		Where("participantKey", "==", entity.ParticipantKey(userA, userB)).
		OrderBy("createdAt", firestore.Asc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err != nil {
		if err == iterator.Done {
			return nil, errors.NotFound("Conversation", nil)
		}
		return nil, errors.Internal("Failed to query conversation by participants", err)
	}

	return parseConversation(doc)
}

func (r *firestoreConversationRepository) ListForUser(ctx context.Context, userID string) ([]*entity.Conversation, error) {
	docs, err := r.client.Collection(conversationsCollection).
		Where("participantIds", "array-contains", userID).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Internal("Failed to list conversations", err)
	}

	conversations := make([]*entity.Conversation, 0, len(docs))
	for _, doc := range docs {
		conversation, err := parseConversation(doc)
		if err != nil {
			continue
		}
		conversations = append(conversations, conversation)
	}

	return conversations, nil
}

func (r *firestoreConversationRepository) UpdateLastMessage(ctx context.Context, id, text string, at time.Time) error {
	_, err := r.client.Collection(conversationsCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "lastMessage", Value: text},
		{Path: "lastMessageAt", Value: at},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Conversation", err)
		}
		return errors.Internal("Failed to update conversation", err)
	}

	return nil
}

func (r *firestoreConversationRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.Collection(conversationsCollection).Doc(id).Delete(ctx)
	if err != nil {
		return errors.Internal("Failed to delete conversation", err)
	}

	return nil
}

func parseConversation(doc *firestore.DocumentSnapshot) (*entity.Conversation, error) {
	var conversation entity.Conversation
	if err := doc.DataTo(&conversation); err != nil {
		return nil, errors.Internal("Failed to parse conversation data", err)
	}
	conversation.ID = doc.Ref.ID
	return &conversation, nil
}

type firestoreParticipantRepository struct {
	client *firestore.Client
}

func NewFirestoreParticipantRepository(client *firestore.Client) repository.ParticipantRepository {
	return &firestoreParticipantRepository{
		client: client,
	}
}

func (r *firestoreParticipantRepository) doc(conversationID, userID string) *firestore.DocumentRef {
	return r.client.Collection(participantsCollection).Doc(entity.ParticipantRecordID(conversationID, userID))
}

func (r *firestoreParticipantRepository) Create(ctx context.Context, participant *entity.Participant) error {
	participant.ID = entity.ParticipantRecordID(participant.ConversationID, participant.UserID)
	if participant.CreatedAt.IsZero() {
		participant.CreatedAt = time.Now()
	}

	_, err := r.doc(participant.ConversationID, participant.UserID).Set(ctx, participant)
	if err != nil {
		return errors.Internal("Failed to create participant", err)
	}

	return nil
}

func (r *firestoreParticipantRepository) ListForUser(ctx context.Context, userID string) ([]*entity.Participant, error) {
	return r.list(ctx, r.client.Collection(participantsCollection).Where("userId", "==", userID))
}

func (r *firestoreParticipantRepository) ListForConversation(ctx context.Context, conversationID string) ([]*entity.Participant, error) {
	return r.list(ctx, r.client.Collection(participantsCollection).Where("conversationId", "==", conversationID))
}

func (r *firestoreParticipantRepository) list(ctx context.Context, query firestore.Query) ([]*entity.Participant, error) {
	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Internal("Failed to list participants", err)
	}

	participants := make([]*entity.Participant, 0, len(docs))
	for _, doc := range docs {
		var participant entity.Participant
		if err := doc.DataTo(&participant); err != nil {
			continue
		}
		participant.ID = doc.Ref.ID
		participants = append(participants, &participant)
	}

	return participants, nil
}

// SetSeen upserts so a missing participant row is recreated rather than lost.
func (r *firestoreParticipantRepository) SetSeen(ctx context.Context, conversationID, userID string, seen bool) error {
	_, err := r.doc(conversationID, userID).Set(ctx, map[string]interface{}{
		"id":             entity.ParticipantRecordID(conversationID, userID),
		"conversationId": conversationID,
		"userId":         userID,
		"seen":           seen,
	}, firestore.MergeAll)
	if err != nil {
		return errors.Internal("Failed to update seen flag", err)
	}

	return nil
}

func (r *firestoreParticipantRepository) DeleteForConversation(ctx context.Context, conversationID string) error {
	docs, err := r.client.Collection(participantsCollection).
		Where("conversationId", "==", conversationID).
		Documents(ctx).GetAll()
	if err != nil {
		return errors.Internal("Failed to list participants", err)
	}

	err = bulkApply(ctx, r.client, refsOf(docs), func(bw *firestore.BulkWriter, ref *firestore.DocumentRef) (*firestore.BulkWriterJob, error) {
		return bw.Delete(ref)
	})
	if err != nil {
		return errors.Internal("Failed to delete participants", err)
	}

	return nil
}
