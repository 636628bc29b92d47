package preprocessing

import (
	"fmt"
	"sort"
	"strconv"
)

// LabelMapping is a bijection between raw class labels and integer codes.
// Code i belongs to Labels[i]. Labels are sorted numerically when every label
// is a number and lexicographically otherwise, so the same label set always
// gets the same codes.
type LabelMapping struct {
	Labels []string `json:"labels"`
}

// NewLabelMapping builds a mapping from the distinct values of raw.
func NewLabelMapping(raw []string) *LabelMapping {
	seen := make(map[string]struct{}, len(raw))
	labels := make([]string, 0)
	for _, r := range raw {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		labels = append(labels, r)
	}

	numeric := make([]float64, len(labels))
	allNumeric := true
	for i, l := range labels {
		f, err := strconv.ParseFloat(l, 64)
		if err != nil {
			allNumeric = false
			break
		}
		numeric[i] = f
	}
	if allNumeric {
		sort.Sort(byValue{labels: labels, values: numeric})
	} else {
		sort.Strings(labels)
	}
	return &LabelMapping{Labels: labels}
}

type byValue struct {
	labels []string
	values []float64
}

func (b byValue) Len() int { return len(b.labels) }
func (b byValue) Less(i, j int) bool {
	if b.values[i] != b.values[j] {
		return b.values[i] < b.values[j]
	}
	return b.labels[i] < b.labels[j]
}
func (b byValue) Swap(i, j int) {
	b.labels[i], b.labels[j] = b.labels[j], b.labels[i]
	b.values[i], b.values[j] = b.values[j], b.values[i]
}

// Len returns the number of classes.
func (m *LabelMapping) Len() int { return len(m.Labels) }

// Encode returns the code of label.
func (m *LabelMapping) Encode(label string) (int, bool) {
	for i, l := range m.Labels {
		if l == label {
			return i, true
		}
	}
	return -1, false
}

// Decode returns the label of code.
func (m *LabelMapping) Decode(code int) (string, bool) {
	if m == nil || code < 0 || code >= len(m.Labels) {
		return "", false
	}
	return m.Labels[code], true
}

// Display returns the label of code, or "Category <code>" when the mapping
// has no such code.
func (m *LabelMapping) Display(code int) string {
	if l, ok := m.Decode(code); ok {
		return l
	}
	return fmt.Sprintf("Category %d", code)
}
