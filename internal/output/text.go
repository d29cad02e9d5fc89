package output

import (
	"bufio"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// TextRenderer writes the answer followed by a short run summary. The
// answer already carries its Sources appendix.
type TextRenderer struct{}

// Render writes the human-readable report.
func (tr *TextRenderer) Render(w io.Writer, r Report) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintln(bw, r.Answer); err != nil {
		return err
	}
	fmt.Fprintf(bw, "\n[%d iterations, ~%s tokens, %s]\n",
		r.Iterations, humanize.Comma(int64(r.TokensUsed)), r.Elapsed)

	if r.Diary != "" {
		fmt.Fprintf(bw, "\nDiary:\n%s\n", r.Diary)
	}

	return bw.Flush()
}
