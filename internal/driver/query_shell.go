package driver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/timmy/musiclip/internal/domain"
)

// Querier is the slice of the search service the query shell uses.
type Querier interface {
	QueryByText(ctx context.Context, text string, topK int) ([]domain.QueryResult, error)
	QueryBySimilarity(ctx context.Context, trackID string, topK int) ([]domain.QueryResult, error)
}

// ParseQuery splits a shell line into a text query or a bracketed song id.
func ParseQuery(line string) (text, songID string) {
	line = strings.TrimSpace(line)
	if len(line) >= 2 && strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
		return "", strings.TrimSpace(line[1 : len(line)-1])
	}
	return line, ""
}

// RunQuery executes one shell line and prints the results.
func RunQuery(ctx context.Context, w io.Writer, q Querier, line string, topK int) error {
	text, songID := ParseQuery(line)

	var (
		results []domain.QueryResult
		err     error
	)
	if text == "" {
		fmt.Fprintf(w, "Searching for songs similar to ID: %s\n", songID)
		results, err = q.QueryBySimilarity(ctx, songID, topK)
	} else {
		results, err = q.QueryByText(ctx, text, topK)
	}
	if err != nil {
		return err
	}
	PrintResults(w, results)
	return nil
}

// QueryShell is the interactive search prompt.
type QueryShell struct {
	in   *bufio.Scanner
	out  io.Writer
	q    Querier
	topK int
}

// NewQueryShell creates a shell reading queries from in.
func NewQueryShell(in io.Reader, out io.Writer, q Querier, topK int) *QueryShell {
	return &QueryShell{in: bufio.NewScanner(in), out: out, q: q, topK: topK}
}

// Run loops until the user quits, input ends or ctx is done.
func (s *QueryShell) Run(ctx context.Context) error {
	fmt.Fprintln(s.out, rule)
	fmt.Fprintln(s.out, headerStyle.Render("Music Query Interactive Shell"))
	fmt.Fprintln(s.out, rule)
	fmt.Fprintln(s.out, "Enter a text query to search for similar music.")
	fmt.Fprintln(s.out, "Or use [song_id] to find songs similar to a specific song.")
	fmt.Fprintln(s.out, "Type 'quit' or 'exit' to exit.")
	fmt.Fprintln(s.out)

	for {
		if ctx.Err() != nil {
			fmt.Fprintln(s.out, "\nGoodbye!")
			return nil
		}
		fmt.Fprint(s.out, "Query: ")
		if !s.in.Scan() {
			fmt.Fprintln(s.out, "\nGoodbye!")
			return s.in.Err()
		}
		line := strings.TrimSpace(s.in.Text())

		switch strings.ToLower(line) {
		case "quit", "exit", "q":
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		case "", "[]":
			fmt.Fprintln(s.out, "Please enter a valid query.")
			fmt.Fprintln(s.out)
			continue
		}

		if err := RunQuery(ctx, s.out, s.q, line, s.topK); err != nil {
			fmt.Fprintf(s.out, "Error (%s): %s\n\n", kindLabel(err), domain.PublicMessage(err))
		}
	}
}

func kindLabel(err error) string {
	if k := domain.KindOf(err); k != domain.KindUnknown {
		return string(k)
	}
	return "error"
}
