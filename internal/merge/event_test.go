package merge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lumeno/chatsync/internal/store"
)

func TestSaveEventAppliesChannelAndMemberForSameCID(t *testing.T) {
	db := newTestDB(t)
	service := newTestService(t, db)

	user := userPayload("u1")
	now := time.Unix(1750000400, 0).UTC()
	event := EventPayload{
		Type: "notification.added_to_channel",
		CID:  "messaging:new",
		Member: &MemberPayload{
			User:      &user,
			Role:      store.ChannelRoleMember,
			CreatedAt: now,
		},
		Channel: &ChannelPayload{
			CID:       "messaging:new",
			UpdatedAt: now,
		},
	}

	if err := service.SaveEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var channel store.Channel
	if err := db.Where("cid = ?", "messaging:new").Take(&channel).Error; err != nil {
		t.Fatalf("channel missing after event: %v", err)
	}
	var member store.Member
	if err := db.Where("channel_cid = ? AND user_id = ?", "messaging:new", "u1").Take(&member).Error; err != nil {
		t.Fatalf("member missing after event: %v", err)
	}
	if member.ChannelCID != channel.CID {
		t.Fatalf("member does not reference the created channel: %q vs %q", member.ChannelCID, channel.CID)
	}
}

func TestSaveEventMemberWithoutCIDIsSkipped(t *testing.T) {
	db := newTestDB(t)
	service := newTestService(t, db)

	user := userPayload("u1")
	event := EventPayload{
		Type:   "member.updated",
		Member: &MemberPayload{User: &user},
	}
	if err := service.SaveEvent(context.Background(), event); err != nil {
		t.Fatalf("member without channel context must be skipped, got %v", err)
	}

	var count int64
	if err := db.Model(&store.Member{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no member rows, got %d", count)
	}
}

func TestSaveEventUnsaveableMessageDoesNotRollBackOtherEffects(t *testing.T) {
	db := newTestDB(t)
	service := newTestService(t, db)

	user := userPayload("u1")
	unread := 5
	event := EventPayload{
		Type: "message.new",
		User: &user,
		CurrentUser: &CurrentUserPayload{
			User:           userPayload("me"),
			UnreadChannels: &unread,
		},
		Message: &MessagePayload{ID: "m1", Text: "orphan"},
	}

	err := service.SaveEvent(context.Background(), event)
	if !errors.Is(err, ErrMissingChannelID) {
		t.Fatalf("expected the message rejection to surface, got %v", err)
	}

	var userCount int64
	if err := db.Model(&store.User{}).Count(&userCount).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if userCount != 2 {
		t.Fatalf("expected user saves to commit despite message rejection, got %d users", userCount)
	}
	var current store.CurrentUser
	if err := db.Where("slot = ?", store.CurrentUserSlot).Take(&current).Error; err != nil {
		t.Fatalf("current user missing: %v", err)
	}
	if current.UnreadChannels != 5 {
		t.Fatalf("expected unread count committed, got %d", current.UnreadChannels)
	}
	var messageCount int64
	if err := db.Model(&store.Message{}).Count(&messageCount).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if messageCount != 0 {
		t.Fatalf("rejected message must not be stored")
	}
}

func TestSaveEventChannelInheritsEventCID(t *testing.T) {
	db := newTestDB(t)
	service := newTestService(t, db)

	event := EventPayload{
		Type:    "channel.updated",
		CID:     "messaging:implied",
		Channel: &ChannelPayload{UpdatedAt: time.Unix(1750000500, 0).UTC()},
	}
	if err := service.SaveEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var channel store.Channel
	if err := db.Where("cid = ?", "messaging:implied").Take(&channel).Error; err != nil {
		t.Fatalf("channel not upserted for event cid: %v", err)
	}
	if channel.ChannelType != "messaging" {
		t.Fatalf("unexpected channel type %q", channel.ChannelType)
	}
}
