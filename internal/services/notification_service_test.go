package services

import (
	"testing"

	"github.com/lissa/commissions-api/internal/models"
	"github.com/lissa/commissions-api/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationService_MarkAsReadScopedToOwner(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.notifications.NotifyUser(f.ctx, 7, "Hola", "Mensaje", "test", nil))

	items, total, err := f.notifications.FindByUser(f.ctx, 7, repository.NewListQuery())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(1), total)

	err = f.notifications.MarkAsRead(f.ctx, 8, items[0].ID)
	assertKind(t, err, KindNotFound)

	require.NoError(t, f.notifications.MarkAsRead(f.ctx, 7, items[0].ID))
	unread, err := f.notifications.CountUnread(f.ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestNotificationService_BrokerWithoutUserIsSkipped(t *testing.T) {
	f := newFixture(t)
	house := f.house()

	require.NoError(t, f.notifications.NotifyBroker(f.ctx, house, "Hola", "Mensaje", "test", nil))
	assert.Zero(t, f.count(&models.Notification{}))
}
