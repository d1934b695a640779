package services

import (
	"sort"
	"strings"

	"github.com/lissa/commissions-api/internal/models"
	"github.com/shopspring/decimal"
)

// EntryKind tags a grouping entry
type EntryKind string

const (
	EntryIndividual  EntryKind = "individual"
	EntryClientGroup EntryKind = "client_group"
	EntryPolicyGroup EntryKind = "policy_group"
)

// noPolicy lists the normalized values insurers use when a line has no policy
var noPolicy = map[string]bool{
	"":           true,
	"N/A":        true,
	"NA":         true,
	"SIN POLIZA": true,
	"SIN PÓLIZA": true,
	"NO POLICY":  true,
	"-":          true,
}

// GroupEntry is one node of the grouping arena
type GroupEntry struct {
	ID      int             `json:"id"`
	Kind    EntryKind       `json:"kind"`
	Key     string          `json:"key,omitempty"`
	ItemIDs []uint          `json:"item_ids"`
	Total   decimal.Decimal `json:"total"`
}

// Grouping is an arena of entries addressed by ID. Every item belongs to exactly one entry.
type Grouping struct {
	Entries []GroupEntry `json:"entries"`
	byItem  map[uint]int
}

// Entry returns the entry with the given ID
func (g *Grouping) Entry(id int) (*GroupEntry, bool) {
	if id < 1 || id > len(g.Entries) {
		return nil, false
	}
	return &g.Entries[id-1], true
}

// EntryOf returns the entry that holds the item
func (g *Grouping) EntryOf(itemID uint) (*GroupEntry, bool) {
	idx, ok := g.byItem[itemID]
	if !ok {
		return nil, false
	}
	return &g.Entries[idx], true
}

// NormalizeName trims and uppercases an insured name
func NormalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// NormalizePolicy trims and uppercases a policy number. ok is false for "no policy" placeholders.
func NormalizePolicy(policy string) (string, bool) {
	p := strings.ToUpper(strings.TrimSpace(policy))
	return p, !noPolicy[p]
}

// GroupItems builds the grouping in two passes. Items sharing an insured name form client
// groups first; the rest are grouped by policy number; whatever remains is individual.
// Input order does not matter: items are processed by ID.
func GroupItems(items []models.CommissionItem) *Grouping {
	sorted := append([]models.CommissionItem(nil), items...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	g := &Grouping{byItem: make(map[uint]int, len(sorted))}
	taken := make(map[uint]bool, len(sorted))

	// first pass: client groups
	byName, nameOrder := bucket(sorted, taken, func(it *models.CommissionItem) (string, bool) {
		n := NormalizeName(it.InsuredName)
		return n, n != ""
	})
	for _, key := range nameOrder {
		if members := byName[key]; len(members) >= 2 {
			g.add(EntryClientGroup, key, members, taken)
		}
	}

	// second pass: policy groups over what is left
	byPolicy, policyOrder := bucket(sorted, taken, func(it *models.CommissionItem) (string, bool) {
		return NormalizePolicy(it.PolicyNumber)
	})
	for _, key := range policyOrder {
		if members := byPolicy[key]; len(members) >= 2 {
			g.add(EntryPolicyGroup, key, members, taken)
		}
	}

	for i := range sorted {
		if !taken[sorted[i].ID] {
			g.add(EntryIndividual, "", []*models.CommissionItem{&sorted[i]}, taken)
		}
	}
	return g
}

// bucket groups untaken items by key, returning keys in order of their lowest item ID
func bucket(items []models.CommissionItem, taken map[uint]bool, keyOf func(*models.CommissionItem) (string, bool)) (map[string][]*models.CommissionItem, []string) {
	buckets := make(map[string][]*models.CommissionItem)
	var order []string
	for i := range items {
		it := &items[i]
		if taken[it.ID] {
			continue
		}
		key, ok := keyOf(it)
		if !ok {
			continue
		}
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], it)
	}
	return buckets, order
}

func (g *Grouping) add(kind EntryKind, key string, members []*models.CommissionItem, taken map[uint]bool) {
	entry := GroupEntry{
		ID:      len(g.Entries) + 1,
		Kind:    kind,
		Key:     key,
		ItemIDs: make([]uint, 0, len(members)),
	}
	for _, it := range members {
		entry.ItemIDs = append(entry.ItemIDs, it.ID)
		entry.Total = entry.Total.Add(it.GrossAmount)
		taken[it.ID] = true
		g.byItem[it.ID] = len(g.Entries)
	}
	g.Entries = append(g.Entries, entry)
}
