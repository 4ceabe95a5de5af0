package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "namespaced scope with action",
			input: "org.eclipse.dspace.dcp.vc.type:Foo:read",
			want:  "Foo",
		},
		{
			name:  "namespaced scope without action",
			input: "org.eclipse.dspace.dcp.vc.type:MembershipCredential",
			want:  "MembershipCredential",
		},
		{
			name:  "type containing colons",
			input: "prefix:Some:Nested:Type",
			want:  "Some:Nested:Type",
		},
		{
			name:  "type containing colons with trailing action",
			input: "prefix:Some:Nested:Type:write",
			want:  "Some:Nested:Type",
		},
		{
			name:  "bare type used verbatim",
			input: "MembershipCredential",
			want:  "MembershipCredential",
		},
		{
			name:  "wildcard action",
			input: "prefix:Foo:*",
			want:  "Foo",
		},
		{
			name:  "trailing colon is not a namespace",
			input: "dangling:",
			want:  "dangling:",
		},
		{
			name:  "action-looking middle segment is kept",
			input: "prefix:read:Foo",
			want:  "read:Foo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func TestParseAll(t *testing.T) {
	scopes := []string{
		"prefix:Foo:read",
		"prefix:Foo:write",
		"",
		"Bar",
	}

	assert.Equal(t, []string{"Foo", "Bar"}, ParseAll(scopes))
}

func TestIntersect(t *testing.T) {
	tests := []struct {
		name             string
		authorized       []string
		requested        []string
		wantEffective    []string
		wantUnrestricted bool
	}{
		{
			name:             "both empty is unrestricted",
			wantUnrestricted: true,
		},
		{
			name:          "empty authorized yields requested",
			requested:     []string{"X"},
			wantEffective: []string{"X"},
		},
		{
			name:          "empty requested yields authorized",
			authorized:    []string{"A"},
			wantEffective: []string{"A"},
		},
		{
			name:          "intersection in requested order",
			authorized:    []string{"A", "B"},
			requested:     []string{"B", "C", "A"},
			wantEffective: []string{"B", "A"},
		},
		{
			name:          "disjoint sets yield nothing",
			authorized:    []string{"A"},
			requested:     []string{"B"},
			wantEffective: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			effective, unrestricted := Intersect(tt.authorized, tt.requested)
			assert.Equal(t, tt.wantUnrestricted, unrestricted)
			assert.Equal(t, tt.wantEffective, effective)
		})
	}
}
