package service

import (
	"context"
	"testing"

	"tally/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSync_MirrorCreateFlow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	tab, err := f.tabs.Create(ctx, f.alice.ID, CreateTabInput{
		Role:        models.TabRoleCreditor,
		Amount:      99.99,
		Description: "festival tickets",
		PeerID:      &f.bob.ID,
	})
	require.NoError(t, err)

	req, err := f.syncs.OnTabCreated(ctx, tab)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, models.SyncRequestCreate, req.Type)
	assert.Equal(t, models.SyncStatusPending, req.Status)
	assert.Equal(t, f.alice.ID, req.InitiatorID)
	assert.Equal(t, f.bob.ID, req.TargetID)
	assert.Equal(t, tab.ID, req.InitiatorTabID)
	// Snapshot carries the display data, not a live reference.
	assert.Equal(t, "festival tickets", req.Description)
	assert.InDelta(t, 99.99, req.Amount, 0.001)
	assert.Equal(t, models.TabRoleCreditor, req.InitiatorRole)
	assert.Equal(t, "Alice", req.InitiatorName)

	assert.Contains(t, f.dispatcher.eventsFor(f.bob.ID), EventSyncRequestReceived)

	pending, err := f.syncs.ListPending(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	resolved, err := f.syncs.Respond(ctx, f.bob.ID, req.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusAccepted, resolved.Status)
	require.NotNil(t, resolved.TargetTabID)
	require.NotNil(t, resolved.RespondedAt)

	// Links back-filled on both sides, roles opposite.
	aliceTab, err := f.tabs.Get(ctx, f.alice.ID, tab.ID)
	require.NoError(t, err)
	bobTab, err := f.tabs.Get(ctx, f.bob.ID, *resolved.TargetTabID)
	require.NoError(t, err)

	require.NotNil(t, aliceTab.LinkedTabID)
	require.NotNil(t, bobTab.LinkedTabID)
	assert.Equal(t, bobTab.ID, *aliceTab.LinkedTabID)
	assert.Equal(t, aliceTab.ID, *bobTab.LinkedTabID)
	assert.Equal(t, f.bob.ID, *aliceTab.LinkedPeerID)
	assert.Equal(t, f.alice.ID, *bobTab.LinkedPeerID)
	assert.Equal(t, models.TabRoleDebtor, bobTab.Role)
	assert.Equal(t, "Alice", bobTab.PeerName)
	assert.InDelta(t, aliceTab.Amount, bobTab.Amount, 0.001)

	assert.Contains(t, f.dispatcher.eventsFor(f.alice.ID), EventSyncRequestAccepted)
}

func TestSync_CreateWithoutFriendshipStaysLocal(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	alice := createTestUser(t, db, "Alice", "Alice#0001")
	bob := createTestUser(t, db, "Bob", "Bob#0002")
	tabs := NewTabService(db)
	syncs := NewSyncService(db, nil)
	ctx := context.Background()

	tab, err := tabs.Create(ctx, alice.ID, CreateTabInput{
		Role: models.TabRoleCreditor, Amount: 10, Description: "book", PeerID: &bob.ID,
	})
	require.NoError(t, err)

	req, err := syncs.OnTabCreated(ctx, tab)
	require.NoError(t, err)
	assert.Nil(t, req)

	var count int64
	require.NoError(t, db.Model(&models.SyncRequest{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSync_RepaymentAcceptSettlesBothSides(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	aliceTab, bobTab := f.createLinkedPair(t, 80, "deposit")

	declared, err := f.tabs.DeclareRepayment(ctx, f.bob.ID, bobTab.ID)
	require.NoError(t, err)

	req, err := f.syncs.OnRepaymentDeclared(ctx, declared)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, models.SyncRequestRepayment, req.Type)
	require.NotNil(t, req.TargetTabID)
	assert.Equal(t, aliceTab.ID, *req.TargetTabID)

	resolved, err := f.syncs.Respond(ctx, f.alice.ID, req.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusAccepted, resolved.Status)

	for _, id := range []uint{aliceTab.ID, bobTab.ID} {
		var tab models.Tab
		require.NoError(t, f.db.First(&tab, id).Error)
		assert.Equal(t, models.TabStatusSettled, tab.Status)
		assert.NotNil(t, tab.SettledAt)
	}
}

func TestSync_RepaymentRejectKeepsStatuses(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	aliceTab, bobTab := f.createLinkedPair(t, 80, "deposit")

	declared, err := f.tabs.DeclareRepayment(ctx, f.bob.ID, bobTab.ID)
	require.NoError(t, err)

	req, err := f.syncs.OnRepaymentDeclared(ctx, declared)
	require.NoError(t, err)
	require.NotNil(t, req)

	resolved, err := f.syncs.Respond(ctx, f.alice.ID, req.ID, false, "never received the money")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusRejected, resolved.Status)
	assert.Equal(t, "never received the money", resolved.RejectionReason)
	assert.NotNil(t, resolved.RespondedAt)

	// No tab settled: bob keeps his declared state, alice keeps hers.
	var reloadedBob models.Tab
	require.NoError(t, f.db.First(&reloadedBob, bobTab.ID).Error)
	assert.Equal(t, models.TabStatusRepaymentPending, reloadedBob.Status)
	var reloadedAlice models.Tab
	require.NoError(t, f.db.First(&reloadedAlice, aliceTab.ID).Error)
	assert.Equal(t, models.TabStatusActive, reloadedAlice.Status)

	assert.Contains(t, f.dispatcher.eventsFor(f.bob.ID), EventSyncRequestRejected)
}

func TestSync_RepaymentOnUnlinkedTab(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	local, err := f.tabs.Create(ctx, f.alice.ID, CreateTabInput{
		Role: models.TabRoleDebtor, Amount: 5, Description: "gum",
	})
	require.NoError(t, err)

	_, err = f.syncs.OnRepaymentDeclared(ctx, local)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindInvalidState))
}

func TestSync_DeleteAcceptRemovesBothTabs(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	aliceTab, bobTab := f.createLinkedPair(t, 40, "dinner")

	req, err := f.syncs.OnTabDeletionRequested(ctx, aliceTab, "paid in cash instead")
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, models.SyncRequestDelete, req.Type)
	assert.Equal(t, "paid in cash instead", req.Message)

	resolved, err := f.syncs.Respond(ctx, f.bob.ID, req.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusAccepted, resolved.Status)

	var count int64
	require.NoError(t, f.db.Model(&models.Tab{}).
		Where("id IN ?", []uint{aliceTab.ID, bobTab.ID}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSync_DeleteRejectKeepsBothTabs(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	aliceTab, bobTab := f.createLinkedPair(t, 40, "dinner")

	req, err := f.syncs.OnTabDeletionRequested(ctx, aliceTab, "")
	require.NoError(t, err)

	_, err = f.syncs.Respond(ctx, f.bob.ID, req.ID, false, "still unpaid")
	require.NoError(t, err)

	var count int64
	require.NoError(t, f.db.Model(&models.Tab{}).
		Where("id IN ?", []uint{aliceTab.ID, bobTab.ID}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestSync_DuplicatePendingRejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	tab, err := f.tabs.Create(ctx, f.alice.ID, CreateTabInput{
		Role: models.TabRoleCreditor, Amount: 12, Description: "taxi", PeerID: &f.bob.ID,
	})
	require.NoError(t, err)

	_, err = f.syncs.OnTabCreated(ctx, tab)
	require.NoError(t, err)

	_, err = f.syncs.OnTabCreated(ctx, tab)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindConflict))
}

func TestSync_RespondByNonTarget(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	tab, err := f.tabs.Create(ctx, f.alice.ID, CreateTabInput{
		Role: models.TabRoleCreditor, Amount: 12, Description: "taxi", PeerID: &f.bob.ID,
	})
	require.NoError(t, err)
	req, err := f.syncs.OnTabCreated(ctx, tab)
	require.NoError(t, err)

	// Neither the initiator nor a stranger may resolve the request.
	_, err = f.syncs.Respond(ctx, f.alice.ID, req.ID, true, "")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindNotFound))

	carol := createTestUser(t, f.db, "Carol", "Carol#0003")
	_, err = f.syncs.Respond(ctx, carol.ID, req.ID, true, "")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindNotFound))
}

func TestSync_RespondTwice(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	tab, err := f.tabs.Create(ctx, f.alice.ID, CreateTabInput{
		Role: models.TabRoleCreditor, Amount: 12, Description: "taxi", PeerID: &f.bob.ID,
	})
	require.NoError(t, err)
	req, err := f.syncs.OnTabCreated(ctx, tab)
	require.NoError(t, err)

	_, err = f.syncs.Respond(ctx, f.bob.ID, req.ID, true, "")
	require.NoError(t, err)

	_, err = f.syncs.Respond(ctx, f.bob.ID, req.ID, false, "")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindConflict))
}

func TestSync_StaleFriendLinkBlocksAccept(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	tab, err := f.tabs.Create(ctx, f.alice.ID, CreateTabInput{
		Role: models.TabRoleCreditor, Amount: 12, Description: "taxi", PeerID: &f.bob.ID,
	})
	require.NoError(t, err)
	req, err := f.syncs.OnTabCreated(ctx, tab)
	require.NoError(t, err)

	// Sever the friendship out from under the pending request. The rows are
	// removed directly so the request itself survives the cascade.
	require.NoError(t, f.db.Where("verified = ?", true).Delete(&models.FriendRelation{}).Error)

	_, err = f.syncs.Respond(ctx, f.bob.ID, req.ID, true, "")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindStalePeer))

	// The rollback leaves the request pending and creates no mirror.
	reloaded, err := f.syncs.ListPending(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, reloaded, 1)
	assert.Equal(t, models.SyncStatusPending, reloaded[0].Status)

	var mirrorCount int64
	require.NoError(t, f.db.Model(&models.Tab{}).Where("owner_id = ?", f.bob.ID).Count(&mirrorCount).Error)
	assert.Zero(t, mirrorCount)
}

func TestSync_AcceptCreateWhenOriginDeleted(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	tab, err := f.tabs.Create(ctx, f.alice.ID, CreateTabInput{
		Role: models.TabRoleCreditor, Amount: 12, Description: "taxi", PeerID: &f.bob.ID,
	})
	require.NoError(t, err)
	req, err := f.syncs.OnTabCreated(ctx, tab)
	require.NoError(t, err)

	require.NoError(t, f.db.Delete(&models.Tab{}, tab.ID).Error)

	_, err = f.syncs.Respond(ctx, f.bob.ID, req.ID, true, "")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindInvalidState))
}

func TestSync_CancelInitiatorOnly(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	tab, err := f.tabs.Create(ctx, f.alice.ID, CreateTabInput{
		Role: models.TabRoleCreditor, Amount: 12, Description: "taxi", PeerID: &f.bob.ID,
	})
	require.NoError(t, err)
	req, err := f.syncs.OnTabCreated(ctx, tab)
	require.NoError(t, err)

	err = f.syncs.Cancel(ctx, f.bob.ID, req.ID)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindNotFound))

	require.NoError(t, f.syncs.Cancel(ctx, f.alice.ID, req.ID))
	assert.Contains(t, f.dispatcher.eventsFor(f.bob.ID), EventSyncRequestCancelled)

	pending, err := f.syncs.ListPending(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
