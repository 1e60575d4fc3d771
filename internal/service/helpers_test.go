package service

import (
	"context"
	"sync"
	"testing"

	"tally/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// recordingDispatcher captures dispatched events for assertions.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []dispatchedEvent
}

type dispatchedEvent struct {
	AccountID uint
	Event     string
	Payload   interface{}
}

func (d *recordingDispatcher) Notify(_ context.Context, accountID uint, event string, payload interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, dispatchedEvent{AccountID: accountID, Event: event, Payload: payload})
}

func (d *recordingDispatcher) eventsFor(accountID uint) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var names []string
	for _, e := range d.events {
		if e.AccountID == accountID {
			names = append(names, e.Event)
		}
	}
	return names
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.FriendRelation{},
		&models.Tab{},
		&models.SyncRequest{},
	))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, name, tag string) *models.User {
	t.Helper()
	user := &models.User{
		Name:     name,
		Email:    name + "@example.com",
		Tag:      tag,
		Password: "hashed",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// fixture wires every service over one database with a recording dispatcher
// and two users who are verified accepted friends.
type fixture struct {
	db         *gorm.DB
	dispatcher *recordingDispatcher
	directory  *DirectoryService
	friends    *FriendService
	tabs       *TabService
	syncs      *SyncService
	alice      *models.User
	bob        *models.User
	relationID uint
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	dispatcher := &recordingDispatcher{}

	f := &fixture{
		db:         db,
		dispatcher: dispatcher,
		directory:  NewDirectoryService(db),
		friends:    NewFriendService(db, dispatcher),
		tabs:       NewTabService(db),
		syncs:      NewSyncService(db, dispatcher),
		alice:      createTestUser(t, db, "Alice", "Alice#0001"),
		bob:        createTestUser(t, db, "Bob", "Bob#0002"),
	}

	ctx := context.Background()
	sent, err := f.friends.SendRequest(ctx, f.alice.ID, f.bob.Tag)
	require.NoError(t, err)

	incoming, err := f.friends.ListIncoming(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, incoming, 1)

	accepted, err := f.friends.Respond(ctx, f.bob.ID, incoming[0].ID, true)
	require.NoError(t, err)
	require.Equal(t, models.FriendStatusAccepted, accepted.Status)

	f.relationID = sent.ID
	return f
}

// createLinkedPair runs the full mirror-create protocol: alice creates a tab
// against bob, bob accepts the sync request. Returns both sides reloaded.
func (f *fixture) createLinkedPair(t *testing.T, amount float64, description string) (aliceTab, bobTab *models.Tab) {
	t.Helper()
	ctx := context.Background()

	tab, err := f.tabs.Create(ctx, f.alice.ID, CreateTabInput{
		Role:        models.TabRoleCreditor,
		Amount:      amount,
		Description: description,
		PeerID:      &f.bob.ID,
	})
	require.NoError(t, err)

	req, err := f.syncs.OnTabCreated(ctx, tab)
	require.NoError(t, err)
	require.NotNil(t, req)

	resolved, err := f.syncs.Respond(ctx, f.bob.ID, req.ID, true, "")
	require.NoError(t, err)
	require.Equal(t, models.SyncStatusAccepted, resolved.Status)
	require.NotNil(t, resolved.TargetTabID)

	aliceTab, err = f.tabs.Get(ctx, f.alice.ID, tab.ID)
	require.NoError(t, err)
	bobTab, err = f.tabs.Get(ctx, f.bob.ID, *resolved.TargetTabID)
	require.NoError(t, err)
	return aliceTab, bobTab
}
