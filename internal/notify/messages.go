package notify

import (
	"fmt"
	"strings"

	"github.com/dukerupert/zaikon/internal/model"
)

// ReplenishMessage lists items that are in their last in-use stage,
// grouped by location.
func ReplenishMessage(userName string, items []model.LocatedItem) Message {
	return Message{
		Title: fmt.Sprintf("Replenish list for %s", userName),
		Body: groupByLocation(items, func(i model.LocatedItem) string {
			return fmt.Sprintf("・%s (stock %d)", i.Name, i.Amount)
		}) + fmt.Sprintf("\n%d item(s) need replenishing.", len(items)),
	}
}

// ShoppingMessage lists Red items, grouped by location.
func ShoppingMessage(userName string, items []model.LocatedItem) Message {
	return Message{
		Title: fmt.Sprintf("Shopping list for %s", userName),
		Body: groupByLocation(items, func(i model.LocatedItem) string {
			return fmt.Sprintf("・%s (stock %d, need %d)", i.Name, i.Amount, i.Yellow)
		}) + fmt.Sprintf("\n%d item(s) to buy.", len(items)),
	}
}

func PurchaseRequestMessage(requester string, p *model.TemporaryPurchase) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "%s asked you to buy %s", requester, p.ItemName)
	if p.Priority == model.PriorityHigh {
		b.WriteString(" (urgent)")
	}
	b.WriteString(".")
	if p.Description != "" {
		fmt.Fprintf(&b, "\n%s", p.Description)
	}
	if p.ExpiresAt != nil {
		fmt.Fprintf(&b, "\nNeeded by %s.", p.ExpiresAt.Format("2006-01-02 15:04 MST"))
	}
	return Message{Title: "New purchase request", Body: b.String(), URL: "/purchases"}
}

func PurchaseCompletedMessage(completer string, p *model.TemporaryPurchase) Message {
	return Message{
		Title: "Purchase completed",
		Body:  fmt.Sprintf("%s bought %s.", completer, p.ItemName),
		URL:   "/purchases",
	}
}

func groupByLocation(items []model.LocatedItem, line func(model.LocatedItem) string) string {
	var b strings.Builder
	var current string
	for i, it := range items {
		if i == 0 || it.LocationName != current {
			if i > 0 {
				b.WriteString("\n")
			}
			current = it.LocationName
			fmt.Fprintf(&b, "[%s]\n", current)
		}
		b.WriteString(line(it))
		b.WriteString("\n")
	}
	return b.String()
}
