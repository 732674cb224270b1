package core

import (
	"errors"
	"testing"
)

func TestNewKeyUniqueness(t *testing.T) {
	const numKeys = 10000

	keys := make(map[Key]bool, numKeys)
	for i := 0; i < numKeys; i++ {
		k := NewKey()
		if k.IsEmpty() {
			t.Errorf("Generated empty key at iteration %d", i)
		}
		if keys[k] {
			t.Errorf("Generated duplicate key: %s", k)
		}
		keys[k] = true
	}
}

func TestNewPrefixedKey(t *testing.T) {
	k := NewPrefixedKey("glm")
	if len(k) < 5 || k[:4] != "glm_" {
		t.Errorf("Expected glm_ prefix, got %s", k)
	}
	if NewPrefixedKey("").IsEmpty() {
		t.Error("Expected non-empty key for empty prefix")
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Key
		wantErr bool
	}{
		{"plain", "model-1", Key("model-1"), false},
		{"trimmed", "  model-1 ", Key("model-1"), false},
		{"empty", "", "", true},
		{"slash", "a/b", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKey(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidKey) {
					t.Errorf("Expected ErrInvalidKey, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestProduct_ZeroFactorRemapped(t *testing.T) {
	p := NewProduct()
	p.Mul(0, ZeroFieldSentinel)
	p.Mul(3, ZeroFieldSentinel)
	if p.Value() != 35*7 {
		t.Errorf("Expected (2*17+1)*(2*3+1)=245, got %d", p.Value())
	}
}

func TestProduct_EvenFactorsDoNotCollapse(t *testing.T) {
	p := NewProduct()
	for i := 0; i < 128; i++ {
		p.Mul(1<<40, ZeroProductSentinel)
	}
	if p.Value() == 0 || p.Value()%2 == 0 {
		t.Errorf("Expected an odd non-zero product, got %d", p.Value())
	}

	tests := []struct {
		name string
		a, b uint64
	}{
		{"adjacent ordinals", 2, 3},
		{"even and odd hash", 1 << 40, 1<<40 | 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := NewProduct(), NewProduct()
			x.Mul(tt.a, ZeroProductSentinel)
			y.Mul(tt.b, ZeroProductSentinel)
			if x.Value() == y.Value() {
				t.Errorf("Expected factors %d and %d to fold differently", tt.a, tt.b)
			}
		})
	}
}

func TestHasher_LengthPrefixing(t *testing.T) {
	a := NewHasher().String("ab").String("c").Sum()
	b := NewHasher().String("a").String("bc").Sum()
	if a == b {
		t.Error("Expected length-prefixed fields to hash differently")
	}
	if HashStrings(nil) == HashStrings([]string{}) {
		t.Error("Expected nil and empty lists to hash differently")
	}
}

func TestErrorHelpers(t *testing.T) {
	if !IsSchemaError(ErrNoColumnsInCommon) {
		t.Error("ErrNoColumnsInCommon should be a schema error")
	}
	if !IsSchemaError(NewIncompatibleColumnError("age", "numeric", "categorical")) {
		t.Error("incompatible column should be a schema error")
	}
	if !IsNotFoundError(NewNotFoundError("model", "m1")) {
		t.Error("expected not found")
	}
	if !IsUnimplemented(NewUnimplementedError("clustering metrics")) {
		t.Error("expected unimplemented")
	}
}
