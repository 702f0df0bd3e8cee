package usecase

import (
	"context"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/singleflight"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
	"classifieds/internal/observability"
	"classifieds/pkg/errors"
	"classifieds/pkg/logger"
	"classifieds/pkg/utils"
)

type ConversationSummary struct {
	*entity.Conversation
	OtherUser *entity.Profile `json:"other_user"`
	Unread    bool            `json:"unread"`
}

// MergeResult describes one dedup pass over a user's conversations.
type MergeResult struct {
	Merged    int      `json:"merged"`
	Survivors []string `json:"survivors"`
}

type ContactResult struct {
	Conversation *entity.Conversation `json:"conversation"`
	Created      bool                 `json:"created"`
	InquirySent  bool                 `json:"inquiry_sent"`
}

// ConversationService runs the remote side of messaging against the store.
type ConversationService struct {
	conversations repository.ConversationRepository
	participants  repository.ParticipantRepository
	messages      repository.MessageRepository
	profiles      repository.ProfileRepository
	posts         repository.PostRepository
	sanitizer     *bluemonday.Policy
	contactGroup  singleflight.Group
	now           func() time.Time
}

func NewConversationService(
	conversations repository.ConversationRepository,
	participants repository.ParticipantRepository,
	messages repository.MessageRepository,
	profiles repository.ProfileRepository,
	posts repository.PostRepository,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		participants:  participants,
		messages:      messages,
		profiles:      profiles,
		posts:         posts,
		sanitizer:     bluemonday.StrictPolicy(),
		now:           time.Now,
	}
}

// ListConversations returns the user's conversations, most recent activity
// first, and the total count.
func (s *ConversationService) ListConversations(ctx context.Context, userID string, offset, limit int) ([]*ConversationSummary, int, error) {
	rows, err := s.participants.ListForUser(ctx, userID)
	if err != nil {
		logger.Error("ListConversations: failed to list participant rows for %s: %v", userID, err)
		return nil, 0, err
	}

	seen := make(map[string]bool, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if _, dup := seen[row.ConversationID]; dup {
			continue
		}
		seen[row.ConversationID] = row.Seen
		ids = append(ids, row.ConversationID)
	}

	convs, err := s.conversations.GetByIDs(ctx, ids)
	if err != nil {
		logger.Error("ListConversations: failed to load conversations for %s: %v", userID, err)
		return nil, 0, err
	}

	profiles := s.otherProfiles(ctx, userID, convs)

	summaries := make([]*ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summaries = append(summaries, &ConversationSummary{
			Conversation: conv,
			OtherUser:    profileOrAnonymous(profiles, conv.OtherParticipant(userID)),
			Unread:       !seen[conv.ID],
		})
	}
	SortSummaries(summaries)

	start, end := utils.Window(len(summaries), offset, limit)
	return summaries[start:end], len(summaries), nil
}

func (s *ConversationService) otherProfiles(ctx context.Context, userID string, convs []*entity.Conversation) map[string]*entity.Profile {
	ids := make([]string, 0, len(convs))
	for _, conv := range convs {
		if other := conv.OtherParticipant(userID); other != "" {
			ids = append(ids, other)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	profiles, err := s.profiles.GetByIDs(ctx, ids)
	if err != nil {
		logger.Warn("ListConversations: profile lookup failed, showing anonymous users: %v", err)
		return nil
	}
	return profiles
}

func profileOrAnonymous(profiles map[string]*entity.Profile, id string) *entity.Profile {
	if p, ok := profiles[id]; ok && p != nil {
		return p
	}
	return entity.AnonymousProfile(id)
}

// SortSummaries orders by last activity, newest first, with the id as tie-break.
func SortSummaries(summaries []*ConversationSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i].ActivityAt(), summaries[j].ActivityAt()
		if !a.Equal(b) {
			return a.After(b)
		}
		return summaries[i].ID < summaries[j].ID
	})
}

// GetSummary builds the list entry for one conversation.
func (s *ConversationService) GetSummary(ctx context.Context, userID, conversationID string) (*ConversationSummary, error) {
	conv, err := s.authorize(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	unread := false
	rows, err := s.participants.ListForConversation(ctx, conversationID)
	if err != nil {
		logger.Warn("GetSummary: failed to read seen flag for %s in %s: %v", userID, conversationID, err)
	}
	for _, row := range rows {
		if row.UserID == userID {
			unread = !row.Seen
		}
	}

	other := conv.OtherParticipant(userID)
	profile, err := s.profiles.GetByID(ctx, other)
	if err != nil {
		if !errors.IsNotFound(err) {
			logger.Warn("GetSummary: failed to load profile %s: %v", other, err)
		}
		profile = entity.AnonymousProfile(other)
	}

	return &ConversationSummary{Conversation: conv, OtherUser: profile, Unread: unread}, nil
}

func (s *ConversationService) authorize(ctx context.Context, userID, conversationID string) (*entity.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, errors.Forbidden("You are not a participant of this conversation", nil)
	}
	return conv, nil
}

// LoadMessages returns one page counted from the newest message backwards,
// ordered oldest first, plus the conversation's message count.
func (s *ConversationService) LoadMessages(ctx context.Context, userID, conversationID string, offset, limit int) ([]*entity.Message, int64, error) {
	if _, err := s.authorize(ctx, userID, conversationID); err != nil {
		return nil, 0, err
	}

	msgs, total, err := s.messages.ListPage(ctx, conversationID, limit, offset)
	if err != nil {
		logger.Error("LoadMessages: failed for %s offset %d: %v", conversationID, offset, err)
		return nil, 0, err
	}
	return msgs, total, nil
}

// CleanMessageText strips markup and surrounding whitespace. An empty result
// means the message must not be sent.
func (s *ConversationService) CleanMessageText(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(text)))
}

func (s *ConversationService) SendMessage(ctx context.Context, userID, conversationID, text string) (*entity.Message, error) {
	content := s.CleanMessageText(text)
	if content == "" {
		return nil, errors.Validation("Message cannot be empty", map[string]string{"content": "Message cannot be empty"})
	}

	conv, err := s.authorize(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	msg := &entity.Message{
		ConversationID: conversationID,
		SenderID:       userID,
		Content:        content,
		CreatedAt:      s.now(),
	}
	s.flagRecipient(ctx, conv, userID)
	if err := s.messages.Create(ctx, msg); err != nil {
		logger.Error("SendMessage: failed to insert message into %s: %v", conversationID, err)
		return nil, err
	}

	s.afterInsert(ctx, conv, msg)
	return msg, nil
}

// flagRecipient marks the conversation unseen for the other participant. It
// runs before the insert so that a recipient who has the conversation open
// and confirms it as seen on the pushed message always writes last.
func (s *ConversationService) flagRecipient(ctx context.Context, conv *entity.Conversation, senderID string) {
	if recipient := conv.OtherParticipant(senderID); recipient != "" {
		if err := s.participants.SetSeen(ctx, conv.ID, recipient, false); err != nil {
			logger.Warn("SendMessage: failed to mark %s unseen for %s: %v", conv.ID, recipient, err)
		}
	}
}

// afterInsert refreshes the denormalized last message. Failures are logged;
// the message itself is already stored.
func (s *ConversationService) afterInsert(ctx context.Context, conv *entity.Conversation, msg *entity.Message) {
	if err := s.conversations.UpdateLastMessage(ctx, conv.ID, msg.Preview(), msg.CreatedAt); err != nil {
		logger.Warn("SendMessage: failed to update last message of %s: %v", conv.ID, err)
	}
}

func (s *ConversationService) SetSeen(ctx context.Context, userID, conversationID string, seen bool) error {
	if _, err := s.authorize(ctx, userID, conversationID); err != nil {
		return err
	}
	if err := s.participants.SetSeen(ctx, conversationID, userID, seen); err != nil {
		logger.Error("SetSeen: failed for %s in %s: %v", userID, conversationID, err)
		return err
	}
	return nil
}

// MergeDuplicates folds conversations that share a participant set into the
// oldest one. A duplicate whose messages could not be moved is left alone.
func (s *ConversationService) MergeDuplicates(ctx context.Context, userID string) (*MergeResult, error) {
	convs, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		logger.Error("MergeDuplicates: failed to list conversations for %s: %v", userID, err)
		return nil, err
	}

	result := &MergeResult{}
	for _, group := range GroupDuplicates(convs) {
		survivor := group[0]
		merged := 0
		for _, dup := range group[1:] {
			if s.mergeInto(ctx, survivor, dup) {
				merged++
			}
		}
		if merged == 0 {
			continue
		}

		result.Merged += merged
		result.Survivors = append(result.Survivors, survivor.ID)
		observability.ConversationsMerged().Add(float64(merged))

		latest, err := s.messages.Latest(ctx, survivor.ID)
		if err != nil {
			if !errors.IsNotFound(err) {
				logger.Warn("MergeDuplicates: failed to read latest message of %s: %v", survivor.ID, err)
			}
			continue
		}
		if err := s.conversations.UpdateLastMessage(ctx, survivor.ID, latest.Preview(), latest.CreatedAt); err != nil {
			logger.Warn("MergeDuplicates: failed to update last message of %s: %v", survivor.ID, err)
		}
	}

	return result, nil
}

func (s *ConversationService) mergeInto(ctx context.Context, survivor, dup *entity.Conversation) bool {
	moved, err := s.messages.Reassign(ctx, dup.ID, survivor.ID)
	if err != nil {
		logger.Error("MergeDuplicates: failed to move messages from %s to %s: %v", dup.ID, survivor.ID, err)
		return false
	}

	rows, err := s.participants.ListForConversation(ctx, dup.ID)
	if err != nil {
		logger.Warn("MergeDuplicates: failed to read participants of %s: %v", dup.ID, err)
	}
	for _, row := range rows {
		if row.Seen {
			continue
		}
		if err := s.participants.SetSeen(ctx, survivor.ID, row.UserID, false); err != nil {
			logger.Warn("MergeDuplicates: failed to carry unseen flag for %s: %v", row.UserID, err)
		}
	}

	if err := s.participants.DeleteForConversation(ctx, dup.ID); err != nil {
		logger.Warn("MergeDuplicates: failed to delete participants of %s: %v", dup.ID, err)
	}
	if err := s.conversations.Delete(ctx, dup.ID); err != nil {
		logger.Warn("MergeDuplicates: failed to delete conversation %s: %v", dup.ID, err)
	}

	logger.Info("MergeDuplicates: merged %s into %s (%d messages)", dup.ID, survivor.ID, moved)
	return true
}

// GroupDuplicates returns every group of two or more conversations sharing a
// participant set, each ordered oldest first so the survivor leads.
func GroupDuplicates(convs []*entity.Conversation) [][]*entity.Conversation {
	byKey := make(map[string][]*entity.Conversation)
	var keys []string
	for _, conv := range convs {
		key := conv.Key()
		if _, ok := byKey[key]; !ok {
			keys = append(keys, key)
		}
		byKey[key] = append(byKey[key], conv)
	}

	var groups [][]*entity.Conversation
	for _, key := range keys {
		group := byKey[key]
		if len(group) < 2 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			if !group[i].CreatedAt.Equal(group[j].CreatedAt) {
				return group[i].CreatedAt.Before(group[j].CreatedAt)
			}
			return group[i].ID < group[j].ID
		})
		groups = append(groups, group)
	}
	return groups
}

// ContactSeller finds or creates the buyer/seller conversation and posts the
// listing card once per listing. Concurrent clicks share one execution.
func (s *ConversationService) ContactSeller(ctx context.Context, buyerID, postID string) (*ContactResult, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID == buyerID {
		return nil, errors.BadRequest("You cannot contact yourself about your own listing", nil)
	}
	if post.Status == entity.PostPending || post.Status == entity.PostRejected {
		return nil, errors.BadRequest("This listing is not open for inquiries", nil)
	}

	v, err, _ := s.contactGroup.Do(buyerID+":"+postID, func() (interface{}, error) {
		return s.contactSeller(ctx, buyerID, post)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ContactResult), nil
}

func (s *ConversationService) contactSeller(ctx context.Context, buyerID string, post *entity.Post) (*ContactResult, error) {
	result := &ContactResult{}

	conv, err := s.conversations.FindBetween(ctx, buyerID, post.AuthorID)
	switch {
	case err == nil:
	case errors.IsNotFound(err):
		conv, err = s.createConversation(ctx, buyerID, post.AuthorID, post.ID)
		if err != nil {
			return nil, err
		}
		result.Created = true
	default:
		logger.Error("ContactSeller: lookup between %s and %s failed: %v", buyerID, post.AuthorID, err)
		return nil, err
	}
	result.Conversation = conv

	exists, err := s.messages.HasInquiry(ctx, conv.ID, post.ID)
	if err != nil {
		logger.Error("ContactSeller: inquiry lookup in %s failed: %v", conv.ID, err)
		return nil, err
	}
	if exists {
		return result, nil
	}

	content, err := entity.EncodeProductInquiry(entity.InquiryFromPost(post))
	if err != nil {
		return nil, errors.Internal("Failed to encode product inquiry", err)
	}
	msg := &entity.Message{
		ConversationID: conv.ID,
		SenderID:       buyerID,
		Content:        content,
		PostID:         post.ID,
		CreatedAt:      s.now(),
	}
	s.flagRecipient(ctx, conv, buyerID)
	if err := s.messages.Create(ctx, msg); err != nil {
		logger.Error("ContactSeller: failed to insert inquiry into %s: %v", conv.ID, err)
		return nil, err
	}
	s.afterInsert(ctx, conv, msg)

	conv.LastMessage = msg.Preview()
	conv.LastMessageAt = msg.CreatedAt
	result.InquirySent = true
	return result, nil
}

func (s *ConversationService) createConversation(ctx context.Context, buyerID, sellerID, postID string) (*entity.Conversation, error) {
	now := s.now()
	conv := entity.NewConversation(buyerID, sellerID, postID, now)
	if err := s.conversations.Create(ctx, conv); err != nil {
		logger.Error("ContactSeller: failed to create conversation: %v", err)
		return nil, err
	}

	for _, uid := range conv.ParticipantIDs {
		row := &entity.Participant{
			ID:             entity.ParticipantRecordID(conv.ID, uid),
			ConversationID: conv.ID,
			UserID:         uid,
			Seen:           true,
			CreatedAt:      now,
		}
		if err := s.participants.Create(ctx, row); err != nil {
			logger.Error("ContactSeller: failed to add %s to %s: %v", uid, conv.ID, err)
			return nil, err
		}
	}

	return conv, nil
}
