package classify

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// maxHeaderLine bounds the first-line read so a malformed file cannot
// make the sniffer buffer unbounded data.
const maxHeaderLine = 4096

// SniffInstrument reads the first line of an uncompressed FASTQ file and
// extracts the instrument identifier from the read header. A FASTQ
// header looks like "@M00123:58:000000000-ABCDE:1:1101:..."; the
// instrument is the first colon-separated field after '@'.
func SniffInstrument(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	return instrumentFromHeader(bufio.NewReaderSize(f, maxHeaderLine))
}

// SniffInstrumentGzip is SniffInstrument for gzip-compressed FASTQ.
func SniffInstrumentGzip(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return "", fmt.Errorf("reading gzip header of %s: %w", path, err)
	}
	defer zr.Close()

	return instrumentFromHeader(bufio.NewReaderSize(zr, maxHeaderLine))
}

// instrumentFromHeader parses the instrument field out of the first line.
func instrumentFromHeader(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading header line: %w", err)
	}

	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "@") {
		// FASTA headers start with '>', and not every sequence file
		// carries an instrument ID. Absence is not an error worth
		// surfacing beyond an empty enrichment.
		return "", nil
	}

	fields := strings.SplitN(strings.TrimPrefix(line, "@"), ":", 2)
	if len(fields) == 0 || fields[0] == "" {
		return "", nil
	}
	return fields[0], nil
}
