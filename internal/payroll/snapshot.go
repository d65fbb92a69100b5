package payroll

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetledger/fleetledger/internal/money"
)

// SourceKey derives the deterministic key linking an item to its entry.
func SourceKey(entryID int64) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte("PAYENTRY:"+formatID(entryID)))
}

// SourceTypeFor maps an entry type to its item source type.
func SourceTypeFor(t EntryType) SourceType {
	switch t {
	case EntryTypeAdjustment:
		return SourceAdjustment
	case EntryTypeDeduction:
		return SourceDeduction
	default:
		return SourceEarning
	}
}

// SignedAmount applies the sign convention of the item source type.
func SignedAmount(e Entry) decimal.Decimal {
	amount := money.Round(e.Amount)
	if e.Type == EntryTypeDeduction {
		return amount.Abs().Neg()
	}
	return amount
}

// BuildItems materialises run items from active entries. payees is keyed by
// driver id; entries without a payee are skipped. Output is ordered by work date
// then entry id.
func BuildItems(run Run, entries []Entry, payees map[int64]Payee) []RunItem {
	ordered := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !e.Active() {
			continue
		}
		if _, ok := payees[e.DriverID]; !ok {
			continue
		}
		ordered = append(ordered, e)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		wi, wj := truncateDay(ordered[i].WorkDate), truncateDay(ordered[j].WorkDate)
		if !wi.Equal(wj) {
			return wi.Before(wj)
		}
		return ordered[i].ID < ordered[j].ID
	})

	items := make([]RunItem, 0, len(ordered))
	for _, e := range ordered {
		payee := payees[e.DriverID]
		workDate := truncateDay(e.WorkDate).Format(DateLayout)
		items = append(items, RunItem{
			TenantID:     run.TenantID,
			RunID:        run.ID,
			PayeeID:      payee.ID,
			SourceType:   SourceTypeFor(e.Type),
			Description:  describe(e, workDate),
			Quantity:     e.Quantity,
			UnitRate:     e.Rate,
			AmountSigned: SignedAmount(e),
			Currency:     run.Currency,
			Metadata: ItemMetadata{
				EntryID:       e.ID,
				EntryType:     e.Type,
				DriverID:      e.DriverID,
				WorkDate:      workDate,
				ReferenceCode: e.ReferenceCode,
				SourceKey:     SourceKey(e.ID),
			},
		})
	}
	return items
}

func describe(e Entry, workDate string) string {
	parts := []string{string(e.Type), workDate}
	if ref := strings.TrimSpace(e.ReferenceCode); ref != "" {
		parts = append(parts, ref)
	}
	return strings.Join(parts, " ")
}

// ComputeTotals rounds each item and aggregates net, gross and per source type
// buckets. Gross is the EARNING bucket.
func ComputeTotals(items []RunItem) Snapshot {
	snap := Snapshot{
		Gross:        decimal.Zero,
		Net:          decimal.Zero,
		BySourceType: make(map[SourceType]decimal.Decimal),
		Count:        len(items),
	}
	for _, item := range items {
		amount := money.Round(item.AmountSigned)
		snap.Net = snap.Net.Add(amount)
		snap.BySourceType[item.SourceType] = snap.BySourceType[item.SourceType].Add(amount)
	}
	snap.Net = money.Round(snap.Net)
	for k, v := range snap.BySourceType {
		snap.BySourceType[k] = money.Round(v)
	}
	snap.Gross = snap.BySourceType[SourceEarning]
	return snap
}
