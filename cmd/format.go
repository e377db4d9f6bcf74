package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rubiojr/cardex/pkg/storage"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			Margin(1, 0)

	ownedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("32"))

	titleCaser = cases.Title(language.English)
)

// formatNumber formats a number with K/M suffixes for readability
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	} else if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	} else {
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
}

// formatTime formats a time relative to now or as an absolute date
func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	if diff < 24*time.Hour {
		if diff < time.Hour {
			minutes := int(diff.Minutes())
			if minutes < 1 {
				return "just now"
			}
			return fmt.Sprintf("%d minutes ago", minutes)
		}
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	}

	if diff < 7*24*time.Hour {
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	}

	if t.Year() == now.Year() {
		return t.Format("Jan 2, 15:04")
	}
	return t.Format("Jan 2, 2006")
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func cardTable(headers []string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(metaStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

// formatCards renders a page of search results.
func formatCards(title string, cards []storage.ProjectedCard) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(title))
	sb.WriteString("\n")

	if len(cards) == 0 {
		sb.WriteString(noDataStyle.Render("No cards found."))
		sb.WriteString("\n")
		return sb.String()
	}

	t := cardTable([]string{"ID", "Name", "Set", "#", "Rarity", "Types", "Owned", "Wish"})
	for _, c := range cards {
		owned := ""
		if c.OwnedQty > 0 {
			owned = ownedStyle.Render("x" + strconv.Itoa(c.OwnedQty))
		}
		wish := ""
		if c.Wishlisted {
			wish = "*"
		}
		t.Row(c.ID, c.Name, deref(c.SetName), deref(c.Number), deref(c.Rarity),
			strings.Join(c.Types, ", "), owned, wish)
	}
	sb.WriteString(t.Render())
	sb.WriteString("\n")
	return sb.String()
}

func formatCollection(entries []storage.CollectionEntry) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("Collection (%d cards)", len(entries))))
	sb.WriteString("\n")

	if len(entries) == 0 {
		sb.WriteString(noDataStyle.Render("Your collection is empty."))
		sb.WriteString("\n")
		return sb.String()
	}

	copies := 0
	t := cardTable([]string{"ID", "Name", "Set", "#", "Qty", "Updated"})
	for _, e := range entries {
		copies += e.Qty
		t.Row(e.ID, e.Name, deref(e.SetName), deref(e.Number), strconv.Itoa(e.Qty), formatTime(e.UpdatedAt))
	}
	sb.WriteString(t.Render())
	sb.WriteString("\n")
	sb.WriteString(metaStyle.Render(fmt.Sprintf("%s copies in total", formatNumber(copies))))
	sb.WriteString("\n")
	return sb.String()
}

func formatWishlist(entries []storage.WishlistEntry) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("Wishlist (%d cards)", len(entries))))
	sb.WriteString("\n")

	if len(entries) == 0 {
		sb.WriteString(noDataStyle.Render("Your wishlist is empty."))
		sb.WriteString("\n")
		return sb.String()
	}

	t := cardTable([]string{"ID", "Name", "Set", "Priority", "Notes", "Added"})
	for _, e := range entries {
		t.Row(e.ID, e.Name, deref(e.SetName), strings.Repeat("*", e.Priority), deref(e.Notes), formatTime(e.AddedAt))
	}
	sb.WriteString(t.Render())
	sb.WriteString("\n")
	return sb.String()
}

// formatStats formats storage statistics for display
func formatStats(stats *storage.Stats, indexed int) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Catalog Statistics"))
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Cards:        %s (%s indexed)\n", formatNumber(stats.Cards), formatNumber(indexed))
	fmt.Fprintf(&sb, "Sets:         %s\n", formatNumber(stats.Sets))
	fmt.Fprintf(&sb, "Owned:        %s cards, %s copies\n", formatNumber(stats.Owned), formatNumber(stats.OwnedCopies))
	fmt.Fprintf(&sb, "Wishlisted:   %s\n", formatNumber(stats.Wishlisted))

	if run := stats.LastImport; run != nil {
		sb.WriteString("\n")
		sb.WriteString(headerStyle.Render("Last import"))
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "Source:       %s\n", run.Source)
		fmt.Fprintf(&sb, "Started:      %s\n", formatTime(run.StartedAt))
		if run.FinishedAt != nil {
			fmt.Fprintf(&sb, "Took:         %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
			fmt.Fprintf(&sb, "Cards:        %s (%d skipped)\n", formatNumber(run.Cards), run.Skipped)
		} else {
			sb.WriteString(metaStyle.Render("did not finish"))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
