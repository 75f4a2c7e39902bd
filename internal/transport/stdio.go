package transport

import (
	"bufio"
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/skeptomenos/portfolio-prism-engine/internal/dispatch"
	"github.com/skeptomenos/portfolio-prism-engine/internal/protocol"
)

// Stdio is the production transport: one command per input line, one
// response per output line, never sharing a byte with stderr (spec.md §4.2).
type Stdio struct {
	out    io.Writer
	table  *dispatch.Table
	outMu  sync.Mutex
	reader *bufio.Reader
}

// NewStdio builds a line-delimited stdio transport over in/out.
func NewStdio(in io.Reader, out io.Writer, table *dispatch.Table) *Stdio {
	return &Stdio{out: out, table: table, reader: bufio.NewReaderSize(in, 64*1024)}
}

// Run consumes command frames until EOF, dispatching each concurrently and
// completing all in-flight requests before returning. A malformed or
// oversize line produces an error response but never closes the stream.
func (s *Stdio) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		line, tooLong, readErr := s.readLine()

		switch {
		case tooLong:
			s.writeResponse(protocol.FailRaw(nil, "", protocol.CodePayloadTooLarge, "frame exceeds maximum size"))
		case !protocol.Blank(line):
			cmd, err := protocol.DecodeCommand(line)
			if err != nil {
				de, _ := err.(*protocol.DecodeError)
				code := protocol.CodeInvalidCommand
				if de != nil {
					code = de.Code
				}
				s.writeResponse(protocol.FailRaw(nil, "", code, err.Error()))
			} else {
				wg.Add(1)
				go func() {
					defer wg.Done()
					resp := s.table.Dispatch(ctx, cmd)
					s.writeResponse(resp)
				}()
			}
		}

		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return readErr
		}
	}
}

// readLine reads one newline-delimited frame from the reader. A line longer
// than protocol.MaxFrameBytes is drained to its terminating newline (or EOF)
// without buffering past that bound, so one oversize line never blocks or
// unbounds memory for the lines that follow it — unlike a bufio.Scanner
// whose fixed-size buffer permanently errors out of Scan on overflow.
func (s *Stdio) readLine() (line []byte, tooLong bool, err error) {
	var buf []byte
	for {
		chunk, isPrefix, rerr := s.reader.ReadLine()
		if room := protocol.MaxFrameBytes + 1 - len(buf); room > 0 {
			if len(chunk) > room {
				chunk = chunk[:room]
			}
			buf = append(buf, chunk...)
		}
		if rerr != nil {
			return buf, len(buf) > protocol.MaxFrameBytes, rerr
		}
		if !isPrefix {
			return buf, len(buf) > protocol.MaxFrameBytes, nil
		}
	}
}

func (s *Stdio) writeResponse(resp protocol.Response) {
	body, err := protocol.EncodeResponse(resp)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode response")
		return
	}
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if _, err := s.out.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response")
		return
	}
	if f, ok := s.out.(interface{ Flush() error }); ok {
		_ = f.Flush()
	}
}
