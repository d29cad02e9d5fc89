package output

import (
	"bufio"
	"encoding/json"
	"io"
)

// JSONRenderer writes the report as a JSON document.
type JSONRenderer struct {
	pretty bool
	indent string
}

// Render serializes the report and terminates it with a newline.
func (jr *JSONRenderer) Render(w io.Writer, r Report) error {
	var out []byte
	var err error
	if jr.pretty {
		out, err = json.MarshalIndent(r, "", jr.indent)
	} else {
		out, err = json.Marshal(r)
	}
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(out); err != nil {
		return err
	}
	if _, err := bw.WriteString("\n"); err != nil {
		return err
	}
	return bw.Flush()
}
