package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"messenger-backend/internal/identity"
	"messenger-backend/internal/kvstore"
	"messenger-backend/internal/models"
)

func newTestRepos() (*kvstore.Tree, *UserRepository, *ConversationRepository) {
	tree := kvstore.New(kvstore.NewMemoryBackend(), "chat")
	return tree, NewUserRepository(tree), NewConversationRepository(tree)
}

func textMessage(senderEmail, senderName, otherEmail, text string, sent time.Time) *models.Message {
	return &models.Message{
		Sender:    models.Sender{ID: identity.SafeKey(senderEmail), DisplayName: senderName},
		MessageID: identity.MessageID(otherEmail, senderEmail, sent),
		SentDate:  sent,
		Kind:      models.KindText,
		Text:      text,
	}
}

func TestUserExists(t *testing.T) {
	ctx := context.Background()
	tree, users, _ := newTestRepos()

	if users.UserExists(ctx, "a@x.com") {
		t.Fatal("UserExists before insert")
	}

	if err := users.InsertUser(ctx, &models.User{FirstName: "Ann", LastName: "A", EmailAddress: "a@x.com"}); err != nil {
		t.Fatalf("InsertUser: %v", err)
	}
	if !users.UserExists(ctx, "a@x.com") {
		t.Fatal("UserExists after insert")
	}

	// A node of the wrong shape counts as absent.
	if err := tree.Ref("c-z-com").Set(ctx, "just a string"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if users.UserExists(ctx, "c@z.com") {
		t.Fatal("UserExists for a string node")
	}
}

// The safe-key collision means a second email can read the first user's record.
func TestUserExistsCollision(t *testing.T) {
	ctx := context.Background()
	_, users, _ := newTestRepos()

	if err := users.InsertUser(ctx, &models.User{FirstName: "A", LastName: "B", EmailAddress: "a.b@c"}); err != nil {
		t.Fatalf("InsertUser: %v", err)
	}
	if !users.UserExists(ctx, "a-b@c") {
		t.Fatal("expected colliding email to see the existing record")
	}
}

func TestGetUserAndDirectory(t *testing.T) {
	ctx := context.Background()
	_, users, _ := newTestRepos()

	if _, err := users.GetUser(ctx, "a@x.com"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("GetUser missing: err = %v, want ErrNotFound", err)
	}
	all, err := users.GetAllUsers(ctx)
	if err != nil || len(all) != 0 {
		t.Fatalf("GetAllUsers empty = %v, %v", all, err)
	}

	for _, u := range []models.User{
		{FirstName: "Ann", LastName: "A", EmailAddress: "a@x.com"},
		{FirstName: "Bob", LastName: "B", EmailAddress: "b@y.com"},
	} {
		u := u
		if err := users.InsertUser(ctx, &u); err != nil {
			t.Fatalf("InsertUser: %v", err)
		}
	}

	got, err := users.GetUser(ctx, "b@y.com")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.FirstName != "Bob" || got.LastName != "B" {
		t.Fatalf("GetUser = %+v", got)
	}

	all, err = users.GetAllUsers(ctx)
	if err != nil {
		t.Fatalf("GetAllUsers: %v", err)
	}
	if len(all) != 2 || all[0].Name != "Ann A" || all[1].Email != "b-y-com" {
		t.Fatalf("GetAllUsers = %+v", all)
	}
}

func TestConversationEndToEnd(t *testing.T) {
	ctx := context.Background()
	_, users, convs := newTestRepos()

	for _, u := range []models.User{
		{FirstName: "Ann", LastName: "A", EmailAddress: "a@x.com"},
		{FirstName: "Bob", LastName: "B", EmailAddress: "b@y.com"},
	} {
		u := u
		if err := users.InsertUser(ctx, &u); err != nil {
			t.Fatalf("InsertUser: %v", err)
		}
	}

	sent := time.Date(2020, time.December, 24, 10, 0, 0, 0, time.UTC)
	conversationID, err := convs.CreateNewConversation(ctx, "b@y.com", "B",
		textMessage("a@x.com", "Ann A", "b@y.com", "hi", sent))
	if err != nil {
		t.Fatalf("CreateNewConversation: %v", err)
	}
	if !strings.HasPrefix(conversationID, "conversation_") {
		t.Fatalf("conversationID = %q", conversationID)
	}

	if err := convs.SendMessage(ctx, conversationID, "B", "b@y.com",
		textMessage("a@x.com", "Ann A", "b@y.com", "there", sent.Add(time.Second))); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	messages, err := convs.GetAllMessagesForConversation(ctx, conversationID)
	if err != nil {
		t.Fatalf("GetAllMessagesForConversation: %v", err)
	}
	if len(messages) != 2 || messages[0].Text != "hi" || messages[1].Text != "there" {
		t.Fatalf("messages = %+v", messages)
	}
	if messages[0].Sender.ID != "a-x-com" || messages[0].Sender.DisplayName != "Ann A" {
		t.Fatalf("sender = %+v", messages[0].Sender)
	}
	if !messages[1].SentDate.Equal(sent.Add(time.Second)) {
		t.Fatalf("SentDate = %v", messages[1].SentDate)
	}

	// Both participants list the conversation with the latest message.
	for _, tc := range []struct {
		email, other, name string
	}{
		{"a@x.com", "b-y-com", "B"},
		{"b@y.com", "a-x-com", "Ann A"},
	} {
		list, err := convs.GetAllConversations(ctx, tc.email)
		if err != nil {
			t.Fatalf("GetAllConversations(%s): %v", tc.email, err)
		}
		if len(list) != 1 {
			t.Fatalf("GetAllConversations(%s) = %+v", tc.email, list)
		}
		c := list[0]
		if c.ID != conversationID || c.OtherUserEmail != tc.other || c.Name != tc.name || c.LatestMessage.Text != "there" {
			t.Fatalf("GetAllConversations(%s)[0] = %+v", tc.email, c)
		}
	}

	id, err := convs.ConversationExists(ctx, "b@y.com", "a@x.com")
	if err != nil || id != conversationID {
		t.Fatalf("ConversationExists = %q, %v", id, err)
	}
	if _, err := convs.ConversationExists(ctx, "b@y.com", "z@z.com"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("ConversationExists unknown: err = %v", err)
	}

	// The user record survives conversation writes.
	if !users.UserExists(ctx, "a@x.com") {
		t.Fatal("user record lost after conversation writes")
	}
}

func TestSendMessageToMissingConversation(t *testing.T) {
	ctx := context.Background()
	_, _, convs := newTestRepos()

	err := convs.SendMessage(ctx, "conversation_missing", "B", "b@y.com",
		textMessage("a@x.com", "Ann", "b@y.com", "hello", time.Now()))
	if !errors.Is(err, models.ErrWriteFailed) {
		t.Fatalf("err = %v, want ErrWriteFailed", err)
	}

	if _, err := convs.GetAllMessagesForConversation(ctx, "conversation_missing"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("conversation was created by a failed send: %v", err)
	}
}

func TestGetAllMessagesEmptyConversation(t *testing.T) {
	ctx := context.Background()
	tree, _, convs := newTestRepos()

	if err := tree.Ref("conversation_empty").Set(ctx, conversationRecord{Messages: []messageRecord{}}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	messages, err := convs.GetAllMessagesForConversation(ctx, "conversation_empty")
	if err != nil {
		t.Fatalf("GetAllMessagesForConversation: %v", err)
	}
	if messages == nil || len(messages) != 0 {
		t.Fatalf("messages = %#v, want empty slice", messages)
	}
}

func TestGetAllMessagesSkipsUndecodable(t *testing.T) {
	ctx := context.Background()
	tree, _, convs := newTestRepos()
	date := identity.FormatDate(time.Date(2021, 1, 2, 3, 4, 5, 0, time.UTC))

	record := conversationRecord{Messages: []messageRecord{
		{ID: "1", Type: "text", Content: "ok", Date: date, SenderEmail: "a-x-com", Name: "Ann"},
		{ID: "2", Type: "hologram", Content: "??", Date: date, SenderEmail: "a-x-com", Name: "Ann"},
		{ID: "3", Type: "text", Content: "bad date", Date: "tomorrow", SenderEmail: "a-x-com", Name: "Ann"},
		{ID: "4", Type: "location", Content: "10.5,59.9", Date: date, SenderEmail: "a-x-com", Name: "Ann"},
		{ID: "5", Type: "photo", Content: "https://cdn.example.com/images/p.png", Date: date, SenderEmail: "a-x-com", Name: "Ann"},
	}}
	if err := tree.Ref("conversation_mixed").Set(ctx, record); err != nil {
		t.Fatalf("Set: %v", err)
	}

	messages, err := convs.GetAllMessagesForConversation(ctx, "conversation_mixed")
	if err != nil {
		t.Fatalf("GetAllMessagesForConversation: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(messages), messages)
	}
	if messages[1].Location == nil || messages[1].Location.Longitude != 10.5 || messages[1].Location.Latitude != 59.9 {
		t.Fatalf("location = %+v", messages[1].Location)
	}
	if messages[2].Media == nil || messages[2].Media.URL != "https://cdn.example.com/images/p.png" {
		t.Fatalf("media = %+v", messages[2].Media)
	}
}

func TestCredentialRepository(t *testing.T) {
	ctx := context.Background()
	backend := kvstore.NewMemoryBackend()
	creds := NewCredentialRepository(kvstore.New(backend, "auth"), kvstore.New(backend, "devices"))

	if _, err := creds.GetCredential(ctx, "a@x.com"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("GetCredential missing: err = %v", err)
	}
	if err := creds.SaveCredential(ctx, "a@x.com", Credential{PasswordHash: "hash"}); err != nil {
		t.Fatalf("SaveCredential: %v", err)
	}
	cred, err := creds.GetCredential(ctx, "a@x.com")
	if err != nil || cred.PasswordHash != "hash" {
		t.Fatalf("GetCredential = %+v, %v", cred, err)
	}

	if err := creds.SaveDevice(ctx, "a@x.com", Device{APNsToken: "tok"}); err != nil {
		t.Fatalf("SaveDevice: %v", err)
	}
	device, err := creds.GetDevice(ctx, "a@x.com")
	if err != nil || device.APNsToken != "tok" {
		t.Fatalf("GetDevice = %+v, %v", device, err)
	}
}

// A node that only holds a conversation list is not a user, and inserting
// the user later keeps the list.
func TestInsertUserKeepsConversations(t *testing.T) {
	ctx := context.Background()
	tree, users, convs := newTestRepos()

	entries := []models.Conversation{{ID: "conversation_1", OtherUserEmail: "a-x-com", Name: "Ann A"}}
	if err := tree.Ref("c-z-com").Child("conversations").Set(ctx, entries); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if users.UserExists(ctx, "c@z.com") {
		t.Fatal("UserExists for a node without first_name")
	}
	if _, err := users.GetUser(ctx, "c@z.com"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("GetUser: err = %v, want ErrNotFound", err)
	}

	if err := users.InsertUser(ctx, &models.User{FirstName: "Cid", LastName: "C", EmailAddress: "c@z.com"}); err != nil {
		t.Fatalf("InsertUser: %v", err)
	}

	got, err := users.GetUser(ctx, "c@z.com")
	if err != nil || got.FirstName != "Cid" || got.LastName != "C" {
		t.Fatalf("GetUser = %+v, %v", got, err)
	}
	list, err := convs.GetAllConversations(ctx, "c@z.com")
	if err != nil || len(list) != 1 || list[0].ID != "conversation_1" {
		t.Fatalf("GetAllConversations = %+v, %v", list, err)
	}
}
