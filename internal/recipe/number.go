package recipe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var leadingAmount = regexp.MustCompile(`^([-+]?\d+(?:[.,]\d+)?)(?:\s*/\s*(\d+))?`)

// number decodes a JSON number, or a string holding one, from model output.
// null and booleans decode to zero.
type number struct {
	value float64
	// text is the original string when it was not a plain number.
	text string
}

func (n *number) UnmarshalJSON(data []byte) error {
	*n = number{}
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 {
		return nil
	}
	switch raw[0] {
	case 'n', 't', 'f':
		var v any
		return json.Unmarshal(raw, &v)
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		n.value, n.text = parseAmount(s)
		return nil
	case '{', '[':
		return fmt.Errorf("expected a number, got %s", snippet(raw))
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return fmt.Errorf("expected a number, got %s", snippet(raw))
	}
	n.value = v
	return nil
}

// parseAmount reads the leading amount of s: "200", "1,5 dl", "1/2 tsk".
// text is empty only when s is exactly a number.
func parseAmount(s string) (float64, string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ""
	}
	if v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return v, ""
	}
	m := leadingAmount.FindStringSubmatch(s)
	if m == nil {
		return 0, s
	}
	v, _ := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if m[2] != "" {
		if d, _ := strconv.ParseFloat(m[2], 64); d != 0 {
			v /= d
		}
	}
	return v, s
}

func snippet(b []byte) string {
	if len(b) > 20 {
		return string(b[:20]) + "..."
	}
	return string(b)
}
