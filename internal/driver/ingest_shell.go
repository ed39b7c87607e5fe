package driver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/timmy/musiclip/internal/domain"
	"github.com/timmy/musiclip/internal/service"
)

// Ingester is the slice of the ingest service the drivers use.
type Ingester interface {
	Ingest(ctx context.Context, playlistID string, opts service.IngestOptions) (*domain.IngestionReport, error)
	IngestTrack(ctx context.Context, trackID string, opts service.IngestOptions) (*domain.IngestionReport, error)
}

// RunPlaylist ingests one playlist, printing tracks in playlist order as they
// finish and the tally at the end. With several workers a finished track waits
// until every track before it has been printed.
func RunPlaylist(ctx context.Context, w io.Writer, ing Ingester, playlistID string, opts service.IngestOptions) (*domain.IngestionReport, error) {
	fmt.Fprintf(w, "\nFetching playlist %s...\n%s\n", playlistID, rule)
	p := newOrderedPrinter(w)
	opts.OnOutcome = p.add
	report, err := ing.Ingest(ctx, playlistID, opts)
	p.flush()
	if report != nil {
		PrintReport(w, report)
	}
	return report, err
}

// orderedPrinter releases outcomes by position. OnOutcome calls are
// serialized by the ingest service, so no locking is needed here.
type orderedPrinter struct {
	w       io.Writer
	next    int
	pending map[int]*domain.TrackOutcome
}

func newOrderedPrinter(w io.Writer) *orderedPrinter {
	return &orderedPrinter{w: w, pending: make(map[int]*domain.TrackOutcome)}
}

func (p *orderedPrinter) add(o *domain.TrackOutcome) {
	p.pending[o.Position] = o
	for {
		next, ok := p.pending[p.next]
		if !ok {
			return
		}
		delete(p.pending, p.next)
		PrintOutcome(p.w, next)
		p.next++
	}
}

// flush prints whatever is still held back, lowest position first.
func (p *orderedPrinter) flush() {
	positions := make([]int, 0, len(p.pending))
	for pos := range p.pending {
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	for _, pos := range positions {
		PrintOutcome(p.w, p.pending[pos])
		delete(p.pending, pos)
	}
}

// RunSong ingests a single song.
func RunSong(ctx context.Context, w io.Writer, ing Ingester, trackID string, opts service.IngestOptions) (*domain.IngestionReport, error) {
	fmt.Fprintf(w, "\nFetching song %s...\n%s\n", trackID, rule)
	opts.OnOutcome = func(o *domain.TrackOutcome) { PrintOutcome(w, o) }
	return ing.IngestTrack(ctx, trackID, opts)
}

// IngestShell is the line-oriented catalogue builder.
type IngestShell struct {
	in       *bufio.Scanner
	out      io.Writer
	ingester Ingester
	opts     service.IngestOptions
}

// NewIngestShell creates a shell reading commands from in.
func NewIngestShell(in io.Reader, out io.Writer, ing Ingester, opts service.IngestOptions) *IngestShell {
	return &IngestShell{
		in:       bufio.NewScanner(in),
		out:      out,
		ingester: ing,
		opts:     opts,
	}
}

func (s *IngestShell) prompt(label string) (string, bool) {
	fmt.Fprint(s.out, label)
	if !s.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}

// Run loops until the user quits, input ends or ctx is done.
func (s *IngestShell) Run(ctx context.Context) error {
	fmt.Fprintln(s.out, rule)
	fmt.Fprintln(s.out, headerStyle.Render("Music Catalogue Indexer - Interactive Shell"))
	fmt.Fprintln(s.out, rule)
	fmt.Fprintln(s.out, "Index playlists or individual songs.")
	fmt.Fprintln(s.out, "Type 'quit' or 'exit' to exit.")

	for {
		if err := ctx.Err(); err != nil {
			fmt.Fprintln(s.out, "\nGoodbye!")
			return nil
		}

		fmt.Fprintln(s.out, "\nWhat would you like to add?")
		fmt.Fprintln(s.out, "  1. Playlist")
		fmt.Fprintln(s.out, "  2. Song")
		fmt.Fprintln(s.out, "  q. Quit")
		choice, ok := s.prompt("\nChoice (1/2/q): ")
		if !ok {
			fmt.Fprintln(s.out, "\nGoodbye!")
			return s.in.Err()
		}

		switch strings.ToLower(choice) {
		case "q", "quit", "exit":
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		case "1":
			id, ok := s.prompt("\nPlaylist ID: ")
			if !ok {
				return s.in.Err()
			}
			if id == "" {
				fmt.Fprintln(s.out, "Please enter a valid playlist ID.")
				continue
			}
			if _, err := RunPlaylist(ctx, s.out, s.ingester, id, s.opts); err != nil {
				fmt.Fprintf(s.out, "\nError: %s\n", domain.PublicMessage(err))
				continue
			}
			fmt.Fprintln(s.out, okStyle.Render("\n✓ Playlist indexed successfully!"))
		case "2":
			id, ok := s.prompt("\nSong ID: ")
			if !ok {
				return s.in.Err()
			}
			if id == "" {
				fmt.Fprintln(s.out, "Please enter a valid song ID.")
				continue
			}
			if _, err := RunSong(ctx, s.out, s.ingester, id, s.opts); err != nil {
				fmt.Fprintf(s.out, "\nError: %s\n", domain.PublicMessage(err))
			}
		default:
			fmt.Fprintln(s.out, "Invalid choice. Please enter 1, 2, or q.")
		}
	}
}
