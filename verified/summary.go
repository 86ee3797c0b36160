package verified

import (
	"context"
	"strconv"
	"time"
)

const speedrunFavicon = "https://www.speedrun.com/images/favicon.png"

// Summary is the publishable form of a Record.
type Summary struct {
	Title         string
	URL           string
	IconURL       string
	Fields        []Field
	Footer        string
	FooterIconURL string
	Timestamp     time.Time
	Color         int
}

type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Summary resolves every lazy field of the record and lays it out for
// publishing. iconURL is the game icon shown next to the title.
func (r *Record) Summary(ctx context.Context, iconURL string) Summary {
	fields := []Field{{Name: "Runner", Value: r.RunnerName, Inline: true}}
	for _, variant := range r.Variants {
		if variant.Present() {
			fields = append(fields, Field{Name: variant.Name, Value: variant.Label, Inline: true})
		}
	}

	fields = append(fields,
		Field{Name: "Time", Value: r.DurationDisplay},
		Field{Name: "Leaderboard Rank", Value: formatRank(r.Rank(ctx), "Obsolete"), Inline: true},
	)
	for _, variant := range r.Variants {
		fallback := "Obsolete"
		if !variant.Present() {
			fallback = "Unknown"
		}
		fields = append(fields, Field{
			Name:   variant.Name + " Rank",
			Value:  formatRank(r.VariantRank(ctx, variant.Name), fallback),
			Inline: true,
		})
	}

	played := "Unknown"
	if !r.DatePlayed.IsZero() {
		played = r.DatePlayed.Format("2006-01-02")
	}
	fields = append(fields, Field{Name: "Date Played", Value: played})

	return Summary{
		Title:         r.Title(),
		URL:           r.URL,
		IconURL:       iconURL,
		Fields:        fields,
		Footer:        "Verified by " + r.VerifiedBy(ctx),
		FooterIconURL: speedrunFavicon,
		Timestamp:     r.DateVerified,
	}
}

func formatRank(rank int, unranked string) string {
	if rank == Unranked {
		return unranked
	}
	return strconv.Itoa(rank)
}
