package services

import (
	"testing"

	"github.com/lissa/commissions-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id uint, insured, policy, amount string) models.CommissionItem {
	return models.CommissionItem{ID: id, InsuredName: insured, PolicyNumber: policy, GrossAmount: dec(amount)}
}

func TestGroupItems_ClientThenPolicy(t *testing.T) {
	items := []models.CommissionItem{
		item(4, "Maria Lopez", "P1", "40"),
		item(1, "JUAN PEREZ", "P9", "10"),
		item(3, "Carlos Ruiz", "P1", "30"),
		item(2, " juan perez ", "", "20"),
	}

	g := GroupItems(items)
	require.Len(t, g.Entries, 2)

	client := g.Entries[0]
	assert.Equal(t, EntryClientGroup, client.Kind)
	assert.Equal(t, "JUAN PEREZ", client.Key)
	assert.Equal(t, []uint{1, 2}, client.ItemIDs)
	assert.True(t, client.Total.Equal(dec("30")))

	policy := g.Entries[1]
	assert.Equal(t, EntryPolicyGroup, policy.Kind)
	assert.Equal(t, "P1", policy.Key)
	assert.Equal(t, []uint{3, 4}, policy.ItemIDs)
	assert.True(t, policy.Total.Equal(dec("70")))
}

func TestGroupItems_EachItemInOneEntry(t *testing.T) {
	items := []models.CommissionItem{
		item(1, "Ana", "P1", "1"),
		item(2, "Ana", "P2", "1"),
		item(3, "Beto", "P2", "1"),
		item(4, "Carla", "P2", "1"),
		item(5, "Dario", "P3", "1"),
	}

	g := GroupItems(items)
	seen := map[uint]int{}
	for _, e := range g.Entries {
		for _, id := range e.ItemIDs {
			seen[id]++
		}
	}
	require.Len(t, seen, len(items))
	for id, n := range seen {
		assert.Equal(t, 1, n, "item %d", id)
	}

	// item 2 went to the client group, so P2 only groups 3 and 4
	entry, ok := g.EntryOf(2)
	require.True(t, ok)
	assert.Equal(t, EntryClientGroup, entry.Kind)
	entry, ok = g.EntryOf(3)
	require.True(t, ok)
	assert.Equal(t, EntryPolicyGroup, entry.Kind)
	assert.Equal(t, []uint{3, 4}, entry.ItemIDs)
	entry, ok = g.EntryOf(5)
	require.True(t, ok)
	assert.Equal(t, EntryIndividual, entry.Kind)
}

func TestGroupItems_NoPolicyPlaceholders(t *testing.T) {
	items := []models.CommissionItem{
		item(1, "", "N/A", "1"),
		item(2, "", "n/a", "1"),
		item(3, "", "sin póliza", "1"),
		item(4, "", "", "1"),
	}

	g := GroupItems(items)
	require.Len(t, g.Entries, 4)
	for _, e := range g.Entries {
		assert.Equal(t, EntryIndividual, e.Kind)
	}
}

func TestGroupItems_OrderIndependent(t *testing.T) {
	a := []models.CommissionItem{item(1, "X", "P1", "1"), item(2, "X", "P1", "2"), item(3, "Y", "P1", "3")}
	b := []models.CommissionItem{a[2], a[0], a[1]}
	assert.Equal(t, GroupItems(a).Entries, GroupItems(b).Entries)
}

func TestGrouping_EntryLookup(t *testing.T) {
	g := GroupItems([]models.CommissionItem{item(7, "Ana", "P1", "1")})

	e, ok := g.Entry(1)
	require.True(t, ok)
	assert.Equal(t, []uint{7}, e.ItemIDs)

	_, ok = g.Entry(0)
	assert.False(t, ok)
	_, ok = g.Entry(2)
	assert.False(t, ok)
	_, ok = g.EntryOf(99)
	assert.False(t, ok)
}
