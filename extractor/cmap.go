package extractor

import (
	"bufio"
	"bytes"
	"sort"
	"strings"
	"unicode/utf16"
)

// toUnicodeMap maps font code sequences to Unicode text, built from a
// ToUnicode CMap stream.
type toUnicodeMap struct {
	entries map[string]string
	lengths []int // code byte lengths, longest first
}

func parseToUnicodeCMap(data []byte) *toUnicodeMap {
	lines := bufio.NewScanner(bytes.NewReader(data))
	result := &toUnicodeMap{entries: make(map[string]string)}
	lengthSet := make(map[int]struct{})
	state := ""
	for lines.Scan() {
		line := strings.TrimSpace(lines.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		switch {
		case strings.HasSuffix(line, "begincodespacerange"):
			state = "codespace"
			continue
		case strings.HasSuffix(line, "endcodespacerange"),
			strings.HasSuffix(line, "endbfchar"),
			strings.HasSuffix(line, "endbfrange"):
			state = ""
			continue
		case strings.HasSuffix(line, "beginbfchar"):
			state = "bfchar"
			continue
		case strings.HasSuffix(line, "beginbfrange"):
			state = "bfrange"
			continue
		}
		switch state {
		case "codespace":
			if hexes := extractHexTokens(line); len(hexes) >= 1 {
				if b := hexToBytes(hexes[0]); len(b) > 0 {
					lengthSet[len(b)] = struct{}{}
				}
			}
		case "bfchar":
			hexes := extractHexTokens(line)
			if len(hexes) >= 2 {
				src := hexToBytes(hexes[0])
				if len(src) > 0 {
					result.entries[string(src)] = decodeUTF16BE(hexToBytes(hexes[1]))
					lengthSet[len(src)] = struct{}{}
				}
			}
		case "bfrange":
			line = accumulateUntil(line, lines)
			hexes := extractHexTokens(line)
			if len(hexes) < 3 {
				continue
			}
			srcStart := hexToBytes(hexes[0])
			srcEnd := hexToBytes(hexes[1])
			length := len(srcStart)
			lengthSet[length] = struct{}{}
			startVal := bytesToInt(srcStart)
			endVal := bytesToInt(srcEnd)
			if strings.Contains(line, "[") {
				for i := 0; i <= endVal-startVal && 2+i < len(hexes); i++ {
					src := intToBytes(startVal+i, length)
					result.entries[string(src)] = decodeUTF16BE(hexToBytes(hexes[2+i]))
				}
			} else {
				dstStart := hexToBytes(hexes[2])
				dstVal := bytesToInt(dstStart)
				for i := 0; i <= endVal-startVal; i++ {
					src := intToBytes(startVal+i, length)
					dst := intToBytes(dstVal+i, len(dstStart))
					result.entries[string(src)] = decodeUTF16BE(dst)
				}
			}
		}
	}
	if len(lengthSet) == 0 {
		for k := range result.entries {
			lengthSet[len(k)] = struct{}{}
		}
	}
	for l := range lengthSet {
		result.lengths = append(result.lengths, l)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(result.lengths)))
	return result
}

func (m *toUnicodeMap) decode(data []byte) string {
	if m == nil || len(m.lengths) == 0 {
		return string(data)
	}
	var out strings.Builder
	for len(data) > 0 {
		matched := false
		for _, l := range m.lengths {
			if len(data) < l {
				continue
			}
			if val, ok := m.entries[string(data[:l])]; ok {
				out.WriteString(val)
				data = data[l:]
				matched = true
				break
			}
		}
		if !matched {
			out.WriteByte(data[0])
			data = data[1:]
		}
	}
	return out.String()
}

// accumulateUntil joins continuation lines of a bfrange array form.
func accumulateUntil(line string, lines *bufio.Scanner) string {
	if !strings.Contains(line, "[") || strings.Contains(line, "]") {
		return line
	}
	for lines.Scan() {
		next := strings.TrimSpace(lines.Text())
		line += " " + next
		if strings.Contains(next, "]") {
			break
		}
	}
	return line
}

func extractHexTokens(line string) []string {
	var tokens []string
	for {
		start := strings.Index(line, "<")
		if start == -1 {
			break
		}
		end := strings.Index(line[start+1:], ">")
		if end == -1 {
			break
		}
		tokens = append(tokens, strings.ReplaceAll(line[start+1:start+1+end], " ", ""))
		line = line[start+1+end+1:]
	}
	return tokens
}

func hexToBytes(h string) []byte {
	if len(h)%2 == 1 {
		h += "0"
	}
	out := make([]byte, len(h)/2)
	for i := 0; i < len(h); i += 2 {
		out[i/2] = fromHexChar(h[i])<<4 | fromHexChar(h[i+1])
	}
	return out
}

func fromHexChar(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	}
	return 0
}

func bytesToInt(b []byte) int {
	val := 0
	for _, c := range b {
		val = val<<8 | int(c)
	}
	return val
}

func intToBytes(value, length int) []byte {
	buf := make([]byte, length)
	for i := length - 1; i >= 0; i-- {
		buf[i] = byte(value)
		value >>= 8
	}
	return buf
}

func decodeUTF16BE(data []byte) string {
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}
	if len(data) == 0 {
		return ""
	}
	buf := make([]uint16, len(data)/2)
	for i := range buf {
		buf[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return string(utf16.Decode(buf))
}
