package driver

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/timmy/musiclip/internal/domain"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	skipStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	rule        = strings.Repeat("=", 60)
)

// Outcome symbols printed per track.
const (
	SymbolIndexed = "✓"
	SymbolSkipped = "⊙"
	SymbolFailed  = "✗"
)

// Symbol returns the one-character outcome marker for a terminal state.
func Symbol(s domain.TrackState) string {
	switch {
	case s == domain.StateIndexed:
		return SymbolIndexed
	case s.IsSkipped():
		return SymbolSkipped
	default:
		return SymbolFailed
	}
}

func outcomeMessage(o *domain.TrackOutcome) string {
	switch o.State {
	case domain.StateIndexed:
		return "Indexed"
	case domain.StateSkippedExisting:
		return "Already indexed, skipped"
	case domain.StateSkippedNoPreview:
		return "No preview available, skipped"
	}
	if o.Err != nil {
		return fmt.Sprintf("%s: %s", o.State, domain.PublicMessage(o.Err))
	}
	if o.Error != "" {
		return fmt.Sprintf("%s: %s", o.State, o.Error)
	}
	return string(o.State)
}

func styled(s domain.TrackState, text string) string {
	switch Symbol(s) {
	case SymbolIndexed:
		return okStyle.Render(text)
	case SymbolSkipped:
		return skipStyle.Render(text)
	default:
		return failStyle.Render(text)
	}
}

// PrintOutcome writes one track's line pair.
func PrintOutcome(w io.Writer, o *domain.TrackOutcome) {
	song := o.SongName
	if song == "" {
		song = o.TrackID
	}
	fmt.Fprintf(w, "[%d] %s - %s\n", o.Position+1, song, o.ArtistName)
	fmt.Fprintf(w, "  %s\n", styled(o.State, Symbol(o.State)+" "+outcomeMessage(o)))
}

// PrintReport writes the final tally of an ingestion run.
func PrintReport(w io.Writer, r *domain.IngestionReport) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, headerStyle.Render("PROCESSING SUMMARY"))
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Total tracks: %d\n", r.Total())
	fmt.Fprintf(w, "Successfully processed: %d\n", r.Count(domain.StateIndexed))
	fmt.Fprintf(w, "Skipped (already indexed): %d\n", r.Count(domain.StateSkippedExisting))
	fmt.Fprintf(w, "Skipped (no preview): %d\n", r.Count(domain.StateSkippedNoPreview))
	fmt.Fprintf(w, "Failed: %d\n", r.Failed())
	for _, s := range domain.TerminalStates {
		if s.IsFailed() && r.Count(s) > 0 {
			fmt.Fprintf(w, "  %s: %d\n", s, r.Count(s))
		}
	}
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("Run %s took %s", r.RunID, r.Duration().Round(time.Millisecond))))
	if r.Err != nil {
		fmt.Fprintln(w, failStyle.Render("Run stopped early: "+domain.PublicMessage(r.Err)))
	}
	fmt.Fprintln(w, rule)
}

// PrintResults writes ranked query results.
func PrintResults(w io.Writer, results []domain.QueryResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("=== Top Results ==="))
	for i, r := range results {
		genres := "N/A"
		if len(r.Metadata.Genres) > 0 {
			genres = strings.Join(r.Metadata.Genres, ", ")
		}
		fmt.Fprintf(w, "%d. %s - %s\n", i+1, orNA(r.Metadata.SongName), orNA(r.Metadata.ArtistName))
		fmt.Fprintf(w, "   Album: %s\n", orNA(r.Metadata.AlbumName))
		fmt.Fprintf(w, "   Genres: %s\n", genres)
		fmt.Fprintf(w, "   Cosine Similarity: %.4f\n", r.CosineSimilarity)
		fmt.Fprintf(w, "   Audio URL: %s\n", dimStyle.Render(r.AudioURL))
		fmt.Fprintln(w)
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
