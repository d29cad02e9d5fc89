package output

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLRenderer writes the report as a YAML document.
type YAMLRenderer struct{}

// Render serializes the report with two-space indentation.
func (yr *YAMLRenderer) Render(w io.Writer, r Report) error {
	bw := bufio.NewWriter(w)
	encoder := yaml.NewEncoder(bw)
	encoder.SetIndent(2)

	if err := encoder.Encode(r); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}
	return bw.Flush()
}
