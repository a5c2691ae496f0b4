package api

import (
	"net/url"
	"testing"
)

func TestWhere_Encode(t *testing.T) {
	tests := []struct {
		name  string
		where Where
		want  map[string]string
	}{
		{
			name:  "single equals",
			where: Equals("_status", "published"),
			want:  map[string]string{"where[_status][equals]": "published"},
		},
		{
			name:  "exists false",
			where: Exists("_status", false),
			want:  map[string]string{"where[_status][exists]": "false"},
		},
		{
			name:  "greater than timestamp",
			where: GreaterThan("updatedAt", "2024-01-01T00:00:00Z"),
			want:  map[string]string{"where[updatedAt][greater_than]": "2024-01-01T00:00:00Z"},
		},
		{
			name: "and of or groups",
			where: And(
				Or(Equals("_status", "published"), Exists("_status", false)),
				Equals("id", "42"),
			),
			want: map[string]string{
				"where[and][0][or][0][_status][equals]": "published",
				"where[and][0][or][1][_status][exists]": "false",
				"where[and][1][id][equals]":             "42",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vals := url.Values{}
			tt.where.Encode(vals)
			for k, want := range tt.want {
				if got := vals.Get(k); got != want {
					t.Errorf("%s = %q, want %q", k, got, want)
				}
			}
			if len(vals) != len(tt.want) {
				t.Errorf("encoded %d params, want %d: %v", len(vals), len(tt.want), vals)
			}
		})
	}
}

func TestWhere_EncodeStable(t *testing.T) {
	w := And(Equals("b", 1), Equals("a", 2))
	first := url.Values{}
	w.Encode(first)
	for i := 0; i < 10; i++ {
		again := url.Values{}
		w.Encode(again)
		if first.Encode() != again.Encode() {
			t.Fatalf("encoding unstable: %s vs %s", first.Encode(), again.Encode())
		}
	}
}
