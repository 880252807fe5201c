package ustar

import (
	"fmt"
	"strconv"
	"strings"
)

// paxRecordPath is the only PAX keyword this codec produces or interprets:
// PAX support here exists solely to carry names longer than the USTAR
// 255-byte limit.
const paxRecordPath = "path"

// formatPAXRecord renders one "<len> <key>=<value>\n" record. The length
// prefix counts itself, which is self-referential enough to need a short
// fixed-point loop: growing the prefix can push the record into the next
// decimal width, which grows the prefix again.
func formatPAXRecord(key, value string) string {
	const fixed = 3 // len(" ") + len("=") + len("\n")
	size := len(key) + len(value) + fixed
	for {
		candidate := strconv.Itoa(size) + " " + key + "=" + value + "\n"
		if len(candidate) == size {
			return candidate
		}
		size = len(candidate)
	}
}

// parsePAXRecords splits a PAX extended header payload into its records.
// Each record is "<decimal length> <key>=<value>\n"; length counts the
// whole record including itself and the trailing newline.
func parsePAXRecords(data []byte) (map[string]string, error) {
	records := make(map[string]string)
	for len(data) > 0 {
		sp := indexByteSlice(data, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("%w: pax record missing length prefix", ErrInvalidHeader)
		}
		n, err := strconv.Atoi(string(data[:sp]))
		if err != nil || n <= sp || n > len(data) {
			return nil, fmt.Errorf("%w: pax record has invalid length", ErrInvalidHeader)
		}
		record := strings.TrimSuffix(string(data[sp+1:n]), "\n")
		data = data[n:]

		eq := strings.IndexByte(record, '=')
		if eq < 0 {
			return nil, fmt.Errorf("%w: pax record missing '='", ErrInvalidHeader)
		}
		records[record[:eq]] = record[eq+1:]
	}
	return records, nil
}

func indexByteSlice(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
