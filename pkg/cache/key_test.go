package cache

import "testing"

func TestKeyString(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "quote key",
			key:  Key{Op: OpQuote, Symbol: "000001"},
			want: "stockfeed:quote:000001",
		},
		{
			name: "info key",
			key:  Key{Op: OpInfo, Symbol: "600519"},
			want: "stockfeed:info:600519",
		},
		{
			name: "universe key has no symbol",
			key:  Key{Op: OpUniverse},
			want: "stockfeed:universe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKeyString_Deterministic(t *testing.T) {
	key := Key{Op: OpQuote, Symbol: "000001"}
	first := key.String()
	for i := 0; i < 10; i++ {
		if got := key.String(); got != first {
			t.Fatalf("String() = %q, want stable %q", got, first)
		}
	}
}
