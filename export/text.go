package export

import (
	"bufio"
	"fmt"
	"io"

	"github.com/kbukum/diarkit/segment"
)

// Text renders one line per turn:
//
//	[0.00s - 5.00s] Alice: Hello there
type Text struct{}

func (Text) Format() Format      { return FormatText }
func (Text) ContentType() string { return "text/plain; charset=utf-8" }

func (Text) Export(w io.Writer, turns []segment.SpeakerTurn) (Report, error) {
	bw := bufio.NewWriter(w)
	for _, t := range turns {
		if _, err := fmt.Fprintf(bw, "[%.2fs - %.2fs] %s: %s\n",
			t.Start, t.End, singleLine(t.DisplayName()), singleLine(t.Text)); err != nil {
			return Report{}, err
		}
	}
	if err := bw.Flush(); err != nil {
		return Report{}, err
	}
	return Report{Format: FormatText, Records: len(turns)}, nil
}
