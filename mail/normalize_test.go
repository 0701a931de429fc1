package mail

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitAddressList(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty", raw: "", want: nil},
		{name: "blank", raw: "   ", want: nil},
		{name: "single", raw: "a@x.com", want: []string{"a@x.com"}},
		{name: "commas", raw: "a@x.com,b@x.com", want: []string{"a@x.com", "b@x.com"}},
		{name: "semicolons", raw: "a@x.com; b@x.com", want: []string{"a@x.com", "b@x.com"}},
		{name: "mixed delimiters irregular spacing", raw: "a@x.com, b@x.com;  c@x.com", want: []string{"a@x.com", "b@x.com", "c@x.com"}},
		{name: "trailing delimiter", raw: "a@x.com,", want: []string{"a@x.com"}},
		{name: "empty entries dropped", raw: ",;a@x.com;;b@x.com,", want: []string{"a@x.com", "b@x.com"}},
		{name: "duplicates kept in order", raw: "a@x.com,b@x.com,a@x.com", want: []string{"a@x.com", "b@x.com", "a@x.com"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SplitAddressList(tc.raw))
		})
	}
}
