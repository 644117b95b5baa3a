package relation_test

import (
	"testing"

	"github.com/d9705996/huddle/internal/relation"
	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name      string
		have      []string
		want      []string
		add, drop []string
	}{
		{name: "empty"},
		{name: "all new", want: []string{"a", "b"}, add: []string{"a", "b"}},
		{name: "all gone", have: []string{"a", "b"}, drop: []string{"a", "b"}},
		{name: "unchanged", have: []string{"a", "b"}, want: []string{"b", "a"}},
		{name: "mixed", have: []string{"a", "b", "c"}, want: []string{"c", "d", "a"}, add: []string{"d"}, drop: []string{"b"}},
		{name: "duplicates", have: []string{"a", "a"}, want: []string{"b", "b"}, add: []string{"b"}, drop: []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			add, drop := relation.Diff(tt.have, tt.want)
			assert.Equal(t, tt.add, add)
			assert.Equal(t, tt.drop, drop)
		})
	}
}
