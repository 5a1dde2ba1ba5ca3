package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/kbukum/diarkit/segment"
)

// CSVHeader is the first row of every CSV export.
var CSVHeader = []string{"speaker", "start", "end", "text"}

// CSV renders one row per turn after a header row. Timestamps are seconds
// in shortest round-trip form.
type CSV struct{}

func (CSV) Format() Format      { return FormatCSV }
func (CSV) ContentType() string { return "text/csv; charset=utf-8" }

func (CSV) Export(w io.Writer, turns []segment.SpeakerTurn) (Report, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return Report{}, err
	}
	for _, t := range turns {
		row := []string{t.DisplayName(), seconds(t.Start), seconds(t.End), t.Text}
		if err := cw.Write(row); err != nil {
			return Report{}, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return Report{}, err
	}
	return Report{Format: FormatCSV, Records: len(turns)}, nil
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
